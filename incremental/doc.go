// Package incremental creates uniquely named, append only, output files
// without ever truncating or reopening an existing file.
//
// Names are derived from a base path by adding a zero based index,
// eg. for a base of logs/run.txt:
//
//	Suffix:    logs/run.txt-0, logs/run.txt-1, ...
//	Extension: logs/run-0.txt, logs/run-1.txt, ...
//
// The first index that does not exist is used. Choosing a name and
// creating the file are separate steps, so concurrent callers may race
// for the same name; exactly one of them will succeed and the others
// receive an error for which errors.Is(err, ErrAlreadyExists) is true.
package incremental
