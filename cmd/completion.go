package cmd

import (
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

var formats = predict.Set{"md", "json", "html"}

// Completion describes the command line for shell completion. Install it
// with COMP_INSTALL=1 pfl.
var Completion = &complete.Command{
	Flags: map[string]complete.Predictor{
		"config":   predict.Files("*"),
		"env-file": predict.Files("*"),
		"v":        predict.Nothing,
	},
	Sub: map[string]*complete.Command{
		"portfolio": {
			Flags: map[string]complete.Predictor{
				"f":   predict.Files("*"),
				"api": predict.Nothing,
				"d":   predict.Something,
				"o":   formats,
			},
		},
		"serve": {
			Flags: map[string]complete.Predictor{"addr": predict.Something},
		},
		"rate": {},
		"quote": {
			Flags: map[string]complete.Predictor{"m": predict.Set{"BCBA", "NYSE", "NASDAQ"}},
			Args:  predict.Something,
		},
	},
}
