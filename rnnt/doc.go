// Package rnnt implements the RNN-Transducer prediction network, the joint
// network and the per-pass hypothesis cache that search drivers score
// prefixes through.
package rnnt
