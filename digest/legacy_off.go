//go:build !digest_legacy

package digest

const legacyBuild = false
