// Package extjson converts BSON documents to and from MongoDB Extended JSON
// (v2). Types without a JSON equivalent (decimal, date, binary, 64-bit
// integers in canonical mode, ...) are written as single-purpose wrapper
// objects such as {"$numberDecimal":"10.09"} and recognised again on input,
// so binary -> text -> binary keeps every value's type.
//
// Key order is preserved in both directions; arrays always render as JSON
// arrays.
package extjson
