/*
Package types defines the data model shared by every felt package.

A table holds Items (cards, tokens) that may be grouped into Stacks, laid out
inside Zones, or held privately in a participant's hand. Participants form a
session roster; Settings, Pointer and SessionInfo cover the session-level
state sent to clients.

Items are referenced everywhere by integer id and never by pointer, so a
stack or zone only records ids and the table resolves them. Id 0 means
"none": an Item with StackID 0 is loose, a Stack with ZoneID 0 is free.

Three families of types describe the same table for different readers:

  - TableState is the complete internal export, used for checkpoints and
    the initial table of a session.
  - Snapshot is what one viewer may see: other players' hands are reduced
    to counts and items hidden by zone visibility have Masked set.
  - SessionRecord wraps a TableState with the roster and metadata for
    persistence.
*/
package types
