/*
Package table is the authoritative state of one shared table.

A Table owns items, stacks, zones and hands and applies every mutation as a
whole or not at all, returning a Delta of what changed. It knows nothing
about connections or leases; callers check those first and serialize access
(the session loop does both).

Depth ordering comes from a monotonic counter: anything moved, dropped or
locked is raised above everything else. Once the counter passes MaxDepth,
Renormalize rewrites depths to 1..N keeping their relative order.

Zones own a stack and arrange it with a layout (stack, row, column, grid,
fan, circle); layout.go holds the pure position functions. Snapshot
and Project render the table for one viewer, masking items hidden by zone visibility
and reducing other hands to counts.

Templates (YAML, see Template) describe the starting table; StandardTemplate
is a face-down 52 card deck at the table center.
*/
package table
