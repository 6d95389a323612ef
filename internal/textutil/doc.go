// Package textutil normalizes display titles and turns them into safe file
// names for manifests.
package textutil
