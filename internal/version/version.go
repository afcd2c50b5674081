package version

// Current is the semantic version of the pipeline, without a "v" prefix.
const Current = "1.0.0"
