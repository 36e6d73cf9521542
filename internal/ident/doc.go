// Package ident provides the identity and addressing types shared by every
// layer of the runtime.
//
// This package contains value types only. All other internal packages
// import ident; ident imports nothing internal.
//
// A resource is addressed two ways:
//   - Path names a class of resources (up to 8 segments, e.g. "media/codec/opus")
//   - Uid names one instance of it, network-wide
//
// Uids are 256 bits wide so collisions are practically impossible. If the
// environment still detects one between two systems it assigns a non-zero
// duplicate marker to separate the instances. Clients never build Uids or
// Paths themselves; they receive them from the environment and compare them.
package ident
