// Package permission resolves whether a command, path, or program is
// permitted under the active policy. The policy is immutable after load.
package permission

import (
	"path/filepath"
	"strings"
)

// PathKind selects which root list a path check consults.
type PathKind int

const (
	ReadPath PathKind = iota
	WritePath
)

// Grant is a namespace-scoped permission: a bare namespace key (e.g. "fs")
// permits any command in that namespace, optionally restricted to a list of
// sub-commands.
type Grant struct {
	Namespace string
	Commands  []string
}

// DefaultAllow seeds the baseline allow list. It is data, not code, and is
// replaced wholesale when configuration supplies its own list.
var DefaultAllow = []string{
	"silk:ping",
	"silk:appInfo",
	"silk:fs/readText",
	"silk:fs/writeText",
	"silk:clipboard/readText",
	"silk:clipboard/writeText",
	"silk:dialog/open",
	"silk:dialog/save",
	"silk:window/setTitle",
}

// DefaultGrants seeds the namespace grants for built-in capability plugins.
// The shell namespace is deliberately absent: spawning programs requires an
// explicit grant in configuration.
var DefaultGrants = []Grant{
	{Namespace: "fs"},
	{Namespace: "clipboard"},
	{Namespace: "dialog"},
	{Namespace: "window"},
	{Namespace: "app"},
}

// Policy holds the resolved permission state.
type Policy struct {
	allow         map[string]struct{}
	deny          map[string]struct{}
	grants        map[string]Grant
	readRoots     []string
	writeRoots    []string
	allowPrograms map[string]struct{}
}

// Spec configures a Policy. Zero-value fields fall back to defaults: a nil
// Allow list seeds DefaultAllow, empty root lists permit every path, and an
// empty program list permits every program.
type Spec struct {
	Allow         []string
	Deny          []string
	Grants        []Grant
	FSReadRoots   []string
	FSWriteRoots  []string
	ShellPrograms []string
}

// New builds an immutable Policy from the spec.
func New(spec Spec) *Policy {
	allow := spec.Allow
	if allow == nil {
		allow = DefaultAllow
	}
	grants := spec.Grants
	if grants == nil {
		grants = DefaultGrants
	}
	p := &Policy{
		allow:         toSet(allow),
		deny:          toSet(spec.Deny),
		grants:        make(map[string]Grant, len(grants)),
		readRoots:     normalizeRoots(spec.FSReadRoots),
		writeRoots:    normalizeRoots(spec.FSWriteRoots),
		allowPrograms: toSet(spec.ShellPrograms),
	}
	for _, g := range grants {
		if g.Namespace != "" {
			p.grants[g.Namespace] = g
		}
	}
	return p
}

// Default returns the baseline policy: the built-in namespace allowed, no
// path or program restrictions.
func Default() *Policy {
	return New(Spec{})
}

// Allows reports whether the identifier is permitted. Check order: exact
// deny, exact allow, namespace grant (prefix up to the first ':'), deny.
func (p *Policy) Allows(id string) bool {
	if _, denied := p.deny[id]; denied {
		return false
	}
	if _, allowed := p.allow[id]; allowed {
		return true
	}
	ns, sub, hasNS := strings.Cut(id, ":")
	if !hasNS {
		return false
	}
	grant, ok := p.grants[ns]
	if !ok {
		return false
	}
	if len(grant.Commands) == 0 {
		return true
	}
	for _, c := range grant.Commands {
		if c == sub {
			return true
		}
	}
	return false
}

// AllowsCommand resolves a route's permission key against the command that
// triggered it. A key carrying its own ':' is checked verbatim; a bare
// namespace key is joined with the command's leaf segment, so key "fs" and
// command "silk:fs/readText" check the identifier "fs:readText".
func (p *Policy) AllowsCommand(key, cmd string) bool {
	if key == "" {
		return true
	}
	return p.Allows(EffectiveKey(key, cmd))
}

// EffectiveKey derives the permission identifier checked for a command.
func EffectiveKey(key, cmd string) string {
	if strings.Contains(key, ":") {
		return key
	}
	return key + ":" + leaf(cmd)
}

func leaf(cmd string) string {
	if i := strings.LastIndexAny(cmd, ":/"); i >= 0 {
		return cmd[i+1:]
	}
	return cmd
}

// AllowsPath reports whether the path is inside a configured root for the
// requested access kind. An empty root list permits every path. Roots and
// the path are resolved to absolute canonical form; containment requires an
// exact separator boundary, so root /foo never matches /foobar.
func (p *Policy) AllowsPath(path string, kind PathKind) bool {
	roots := p.readRoots
	if kind == WritePath {
		roots = p.writeRoots
	}
	if len(roots) == 0 {
		return true
	}
	resolved := canonical(path)
	for _, root := range roots {
		if contains(root, resolved) {
			return true
		}
	}
	return false
}

// AllowsProgram reports whether the program may be spawned. An empty allow
// set permits any program the command allow list already admitted.
func (p *Policy) AllowsProgram(name string) bool {
	if len(p.allowPrograms) == 0 {
		return true
	}
	_, ok := p.allowPrograms[name]
	return ok
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}

func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		trimmed := strings.TrimRight(root, string(filepath.Separator))
		if trimmed == "" {
			trimmed = string(filepath.Separator)
		}
		out = append(out, canonical(trimmed))
	}
	return out
}

func canonical(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

func contains(root, path string) bool {
	if root == "" {
		return false
	}
	if path == root {
		return true
	}
	if root == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
