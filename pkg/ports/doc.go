/*
Package ports defines the driven ports (interfaces) for the Arbor engine.

These interfaces decouple the editor and the session runtime from external
implementations, allowing them to work with various storage backends and
group sources.

# Key Interfaces

  - QuestionStore: persists questions and logic trees on behalf of the editor.
  - GroupLoader: loads groups (questions plus logic) for evaluation.
  - SessionStore: persists and loads respondent session State.
  - DistributedLocker: provides distributed locking for concurrent session access.
*/
package ports
