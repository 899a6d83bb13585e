// Package output serializes integrated patterns and writes them to disk.
//
// The package is organized around three concerns:
//
//   - Serialization (serializer.go): the dat text format with a "#" header,
//     plus bare xy and csv variants.
//
//   - Formats (registry.go): a [Registry] that maps the configured pattern
//     suffix to a serializer.
//
//   - Writers (writer.go): the [Writer] interface with [StdoutWriter] and
//     [FileWriter]. FileWriter publishes each file exactly once and refuses
//     to replace an existing pattern.
package output
