// Package domain models bake requests: a recipe plus the data locations it
// runs against, as submitted to the bake worker over Kafka.
//
// # Request Format
//
// A request is a JSON object on the request topic:
//
//	{
//	  "id": "nightly-2024-04-26",          // optional
//	  "recipe": "steps:\n  - operator: ...", // YAML/JSON text, or an inline JSON object
//	  "input_path": "/data/forecast",
//	  "output_path": "/data/out/nightly.nc"
//	}
//
// The recipe may be given as a string containing a YAML or JSON document, or
// directly as a JSON object. Both forms are handed to the recipe parser as
// bytes; JSON is valid YAML.
//
// # Results
//
// Every parseable request produces exactly one [BakeResult] on the result
// topic, keyed by request ID. A recipe that fails (bad document, unknown
// operator, operator error) yields a result with status "failed" and the
// error text; it is not a worker error and is not retried.
//
// # ID Generation
//
// Requests without an ID get a deterministic SHA-256 based ID over the recipe
// text and paths, so replaying the same message yields the same result key.
// See [generateID].
//
// # Statistics
//
// The write.publish_statistics operator emits [StatisticsEvent] values to a
// separate topic, keyed by label (or cube name when no label is given).
package domain
