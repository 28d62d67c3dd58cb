//go:build simdebug

package models

const debugAssertions = true
