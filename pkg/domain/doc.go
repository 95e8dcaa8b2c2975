/*
Package domain contains the core models of the Arbor questionnaire engine.

It defines the entities shared by every other package: questions and their
references, the conditional logic tree, answers and the session state. The
package is pure and free of I/O so that evaluation stays deterministic and
every adapter can be swapped without touching the model.

# Key Entities

  - Question: a single prompt with a type, an identifier and display metadata.
  - QuestionRef: a tagged reference to a question, either unsaved (local id) or saved (persisted id).
  - LogicNode: an item of the logic tree, either a question or a conditional block.
  - Tree: the ordered, nested logic of a group, with path-copying mutations.
  - State: the runtime snapshot of a respondent session (position, status, answers).
*/
package domain
