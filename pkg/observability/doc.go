/*
Package observability provides lifecycle hooks for monitoring the arbor engine.

Metrics exports saves, evaluations, navigations and heal passes to Prometheus;
LogHooks writes the same events to a structured logger. Combine chains hook
sets so both can be installed on one engine.
*/
package observability
