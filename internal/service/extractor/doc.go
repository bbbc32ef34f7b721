// Package extractor peels a vendor driver bundle down to plain files.
//
// The bundle is wrapped four times: an outer compressed archive holds a
// self-extracting bootstrapper executable, the bootstrapper carries a cabinet
// container appended after its own structure, and the cabinet holds a single
// structured installer package (MSI) whose contents are the files we want.
// Each layer is one stage of an ordered pipeline. A stage reads the artifact
// produced by the previous one and writes only into its own directory.
//
// External tools are reached through two small interfaces, Archiver and
// PackageUnpacker, so that the fragile parts (7-Zip output parsing, msitools
// invocation) live in one adapter each and tests can substitute fakes.
package extractor
