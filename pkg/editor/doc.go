/*
Package editor applies structural edits to a group's logic tree and keeps
the backend in sync.

Every edit is applied to the in-memory tree immediately and returns the new
snapshot. Persistence runs in the background:

  - New questions are created asynchronously. Until the backend returns an
    id the tree refers to them by local id; the id is then committed to the
    registry and rewritten into the tree in one step.
  - Tree saves run one at a time and always serialize the latest tree, so a
    burst of edits collapses into a small number of saves.
  - Content edits are debounced per question. Responses that arrive after a
    newer edit are ignored.

Failures are logged and reflected in SaveStatus; the local tree is never
rolled back.
*/
package editor
