// Package oscillometry estimates blood pressure from a cuff pressure trace
// recorded during deflation.
//
// The pipeline is fixed: locate the inflation apex, keep the deflation
// suffix, smooth it with a 5-sample moving average, find local maxima at
// least 5 samples apart, and derive MAP, systolic and diastolic pressure from
// those peaks.
//
// The default ordinal method picks systolic and diastolic by position in the
// list of valid peaks (second, and nineteenth from last). It was tuned for one
// board and deflation rate and is kept as is for compatibility with results
// already recorded with that board. The ratio method uses the textbook
// amplitude-ratio criteria instead.
package oscillometry
