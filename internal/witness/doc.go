// Package witness defines the constrained value model for stored
// counterexamples and its canonical JSON serialization.
//
// A witness is the generated input that falsified a property. Witnesses are
// persisted across runs, so their representation is deliberately small and
// deterministic: string, int64, bool, null, array, object. Floats are
// forbidden - their textual form is not stable across encoders and would
// break the round-trip guarantee of the counterexample file.
//
// Canonical serialization follows RFC 8785: object keys sorted by UTF-16
// code units, NFC-normalized strings, no HTML escaping. Two structurally
// equal witnesses always encode to identical bytes.
package witness
