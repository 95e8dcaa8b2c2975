/*
Package flow evaluates a logic tree against a set of answers.

Evaluation is a pure function of the tree, the question source and the
answers: it performs no I/O and logs nothing, so identical inputs always
produce identical results. The walk visits items in order, emits questions,
skips conditional blocks whose condition does not hold and stops at the
first halt. Repeatable sets are then expanded into one block per instance
and the result is paginated.
*/
package flow
