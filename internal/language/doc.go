// Package language maps user-supplied language names and codes onto the
// three-letter codes used for dataset translation languages and for the
// language folders of import archives.
package language
