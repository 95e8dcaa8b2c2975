/*
Package session runs respondent sessions over one or more question groups.

A Manager serializes access to stored sessions, with an optional distributed
lock so several replicas can share a store. A Runtime opens sessions on top of
a Manager: each Session keeps a working copy of the answers, re-evaluates the
visible questions when an answer that a conditional reads changes, validates
required answers on forward navigation and persists on every move.
*/
package session
