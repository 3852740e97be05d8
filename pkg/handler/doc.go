/*
Package handler turns decoded client intents into table operations.

The Dispatcher decodes a frame, answers lifecycle intents (create, join,
leave, list) through the session registry and submits every other intent to
the caller's session loop. Inside the loop each handler checks, in order:

 1. the subjects exist (NOT_FOUND)
 2. nobody else holds a lease on them (ITEM_LOCKED / STACK_LOCKED, with the
    authoritative subject attached so the client can snap back)
 3. the caller may act on them (NOT_IN_HAND, NOT_YOUR_ITEM, ZONE_LOCKED,
    INVALID_OPERATION)

and only then mutates the table and broadcasts the result. Hands are
private: the owner receives hand_updated with the full contents, everyone
else a hand_count. Changes touching a hidden zone are projected separately
for each viewer.

Session settings, visibility, name and reset are host-only.
*/
package handler
