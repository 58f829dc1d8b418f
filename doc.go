// Package signalcore is the cryptographic core of an asynchronous,
// forward-secret messaging channel: XEdDSA/VXEdDSA signatures over a
// Montgomery key pair, the X3DH key agreement handshake, and the
// Double Ratchet messaging protocol.
//
// Overview
//
// A channel between two parties is built in three layers.
//
// First, each party has a long-lived X25519 identity key pair. XEdDSA
// (package xeddsa) lets that same key pair sign messages by
// deterministically deriving its Edwards-curve twin, so a single key
// serves both key agreement and signatures. VXEdDSA additionally
// produces a verifiable random function proof over the same key.
//
// Second, X3DH (package x3dh) lets an initiator establish a shared
// secret with a responder who may be offline, by combining the
// responder's published prekey bundle with a fresh ephemeral key and
// three or four Diffie-Hellman operations.
//
// Third, the Double Ratchet (package ratchet) turns that shared secret
// into a running session: every message advances a symmetric chain
// key (forward secrecy), and periodic Diffie-Hellman ratchet steps
// replace the chain keys outright (post-compromise recovery). Package
// wire holds the fixed-width framing shared by the handshake and the
// ratchet.
//
// Scope
//
// This module is a pure, byte-oriented library: it has no transport,
// no persistence, and no UI. Callers own storage, networking, and
// session lifecycle. It targets a single initiator/responder pair;
// device multiplexing, group messaging, sealed-sender metadata
// hiding, post-quantum hybridization, and key-server federation are
// out of scope.
//
// References
//
//    https://signal.org/docs/specifications/xeddsa
//    https://signal.org/docs/specifications/x3dh
//    https://signal.org/docs/specifications/doubleratchet/doubleratchet.pdf
//
package signalcore
