package settings

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Well-known top-level keys.
const (
	KeyProjectName      = "project_name"
	KeyDescription      = "description"
	KeyAutoFillUserID   = "auto_fill_user_id"
	KeyAutoFillPassword = "auto_fill_password"
	KeyLastUser         = "last_user"

	// keyAutoFillCredentials is the combined flag written by earlier releases.
	keyAutoFillCredentials = "auto_fill_credentials"
)

// Settings is a per-project settings document: a nested key/value tree.
//
// A Settings value remembers the document it was loaded from so that Save can
// write back only what the caller changed; keys the caller never touched keep
// whatever value is on disk at save time.
type Settings struct {
	root     string
	values   map[string]interface{}
	baseline map[string]interface{}
}

func newSettings(root string, doc map[string]interface{}) *Settings {
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return &Settings{
		root:     root,
		values:   deepCopyMap(doc),
		baseline: deepCopyMap(doc),
	}
}

// Root returns the project root the document belongs to.
func (s *Settings) Root() string {
	return s.root
}

// Get returns the value at a dotted key path such as "last_user.id".
func (s *Settings) Get(key string) (interface{}, bool) {
	cur := interface{}(s.values)
	for _, part := range splitKey(key) {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores value at a dotted key path, creating intermediate objects.
// A non-object value on the way is replaced by an object.
func (s *Settings) Set(key string, value interface{}) error {
	parts := splitKey(key)
	if len(parts) == 0 {
		return fmt.Errorf("settings key cannot be empty")
	}
	m := s.values
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
	return nil
}

// Delete removes the value at a dotted key path.
func (s *Settings) Delete(key string) {
	parts := splitKey(key)
	if len(parts) == 0 {
		return
	}
	m := s.values
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]interface{})
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}

// Keys returns the sorted top-level keys.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a deep copy of the whole document.
func (s *Settings) Map() map[string]interface{} {
	return deepCopyMap(s.values)
}

// Dirty reports whether the document differs from what was loaded.
func (s *Settings) Dirty() bool {
	return !reflect.DeepEqual(s.values, s.baseline)
}

// ProjectName returns the display name, defaulting to the root's base name.
func (s *Settings) ProjectName() string {
	if v, ok := s.values[KeyProjectName].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return baseName(s.root)
}

// SetProjectName sets the display name.
func (s *Settings) SetProjectName(name string) {
	s.values[KeyProjectName] = name
}

// Description returns the project description.
func (s *Settings) Description() string {
	v, _ := s.values[KeyDescription].(string)
	return v
}

// SetDescription sets the project description.
func (s *Settings) SetDescription(d string) {
	s.values[KeyDescription] = d
}

// AutoFillUserID reports whether the login form pre-fills the last user.
// It defaults to true.
func (s *Settings) AutoFillUserID() bool {
	return s.boolWithLegacy(KeyAutoFillUserID, true)
}

// SetAutoFillUserID sets the auto-fill user flag.
func (s *Settings) SetAutoFillUserID(v bool) {
	s.values[KeyAutoFillUserID] = v
}

// AutoFillPassword reports whether the login form pre-fills the password.
// It defaults to false.
func (s *Settings) AutoFillPassword() bool {
	return s.boolWithLegacy(KeyAutoFillPassword, false)
}

// SetAutoFillPassword sets the auto-fill password flag.
func (s *Settings) SetAutoFillPassword(v bool) {
	s.values[KeyAutoFillPassword] = v
}

// LastUser returns the remembered user id and password.
func (s *Settings) LastUser() (id, password string) {
	m, ok := s.values[KeyLastUser].(map[string]interface{})
	if !ok {
		return "", ""
	}
	id, _ = m["id"].(string)
	if enc, ok := m["password"].(string); ok && enc != "" {
		if raw, err := base64.StdEncoding.DecodeString(enc); err == nil {
			password = string(raw)
		}
	}
	return id, password
}

// SetLastUser remembers a user id and password. An empty id and password
// removes the entry.
func (s *Settings) SetLastUser(id, password string) {
	if id == "" && password == "" {
		delete(s.values, KeyLastUser)
		return
	}
	entry := map[string]interface{}{"id": id}
	if password != "" {
		entry["password"] = base64.StdEncoding.EncodeToString([]byte(password))
	}
	s.values[KeyLastUser] = entry
}

func (s *Settings) boolWithLegacy(key string, def bool) bool {
	if v, ok := s.values[key].(bool); ok {
		return v
	}
	if v, ok := s.values[keyAutoFillCredentials].(bool); ok {
		return v
	}
	return def
}

func splitKey(key string) []string {
	var parts []string
	for _, p := range strings.Split(key, ".") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// mergeChanges applies to dst every difference between base and cur.
// Keys equal in base and cur are left as they are in dst.
func mergeChanges(dst, base, cur map[string]interface{}) {
	for k, cv := range cur {
		bv, inBase := base[k]
		if inBase && reflect.DeepEqual(bv, cv) {
			continue
		}
		cm, curIsMap := cv.(map[string]interface{})
		bm, baseIsMap := bv.(map[string]interface{})
		dm, dstIsMap := dst[k].(map[string]interface{})
		if curIsMap && baseIsMap && dstIsMap {
			mergeChanges(dm, bm, cm)
			continue
		}
		dst[k] = deepCopy(cv)
	}
	for k := range base {
		if _, still := cur[k]; !still {
			delete(dst, k)
		}
	}
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

var knownKeys = map[string]bool{
	KeyProjectName:         true,
	KeyDescription:         true,
	KeyAutoFillUserID:      true,
	KeyAutoFillPassword:    true,
	KeyLastUser:            true,
	keyAutoFillCredentials: true,
	keyProjectRoot:         true,
}

// Extra returns a copy of the top-level keys this package does not interpret.
func (s *Settings) Extra() map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range s.values {
		if !knownKeys[k] {
			out[k] = deepCopy(v)
		}
	}
	return out
}
