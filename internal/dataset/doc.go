// Package dataset loads the numeric CSV files a run trains and evaluates
// on, and turns them into feature and label matrices.
//
// Every row holds the features followed by a trailing label column. No
// header row is expected and no schema is enforced beyond "every cell is a
// number and every row has the same width".
package dataset
