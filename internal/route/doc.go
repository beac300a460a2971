// Package route implements the gateway's route allow-list.
//
// A request is admitted when a rule matches its service exactly, its method
// is in the rule's method set, and its path starts with the rule's prefix.
// Rules may additionally require a verified caller with specific roles, or
// gate on a CEL condition over the request attributes.
package route
