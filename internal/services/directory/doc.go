// Package directory maps node ids to public keys.
package directory
