// Package validation checks files and directories at the edges of a run:
// probe matrices and affinity models before they are read, and output
// directories before results are written.
package validation
