/*
Package runner drives respondent sessions from non-interactive frontends.

JSONHandler speaks JSON Lines: every input line is a Command and every
output line is an Event carrying the current session view. It backs
`arbor run --json`, letting scripts and other processes fill in a
questionnaire without a terminal.

	{"action":"answer","identifier":"has_pet","value":"yes"}
	{"action":"forward"}

SanitizeInput is shared with the line-based runner of the root package.
*/
package runner
