/*
Package types defines the domain model shared across the winprojfs bridge:
entry descriptors, the Provider capability interface, and notification
types.

Nothing in this package touches the operating system. Descriptors and
events own no driver resources; the translation to and from the native
on-disk representation happens exclusively at the dispatch boundary, so a
Provider implementation can be written and tested on any platform.
*/
package types
