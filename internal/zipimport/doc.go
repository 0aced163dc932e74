// Package zipimport imports primary videos for a dataset from a zip archive.
//
// An import moves through the stages Uploaded, StructureValidated, Extracted,
// Matched and Imported. The archive must contain only files laid out as
// "{acronym}/{lang3}/{annotation}.{ext}" where lang3 is one of the dataset's
// translation languages; a single misplaced file rejects the whole archive
// before anything is extracted. Each file is matched to the entry whose
// annotation in that language equals the file name without extension.
// Unmatched and ambiguous files are reported and skipped, and a failure on one
// pair never blocks the others.
package zipimport
