// Package internaldefs holds the shared counter-to-name table used by the
// metric exporters.
package internaldefs
