// Package stagetype holds the leaf types shared by every stage3 package:
// the entry model, compression identifiers, progress events, and the error
// classes.
package stagetype
