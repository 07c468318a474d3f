package permit

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oarkflow/date"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// CONFIG TYPES
// ============================================================================

// Config is the complete engine configuration: tuning knobs plus the
// entities seeded into the directory at startup.
type Config struct {
	Version uint16       `json:"version" yaml:"version"`
	Engine  EngineConfig `json:"engine" yaml:"engine"`
	Seed    SeedConfig   `json:"seed" yaml:"seed"`
}

// EngineConfig tunes runtime behavior. Durations are milliseconds;
// zero or negative values fall back to defaults. The disable flags
// default to off, so a zero config runs with audit and cache active.
type EngineConfig struct {
	CacheTTL            int64              `json:"cache_ttl_ms" yaml:"cache_ttl_ms"`
	SessionCheckTTL     int64              `json:"session_check_ttl_ms" yaml:"session_check_ttl_ms"`
	AuditRetention      int64              `json:"audit_retention_ms" yaml:"audit_retention_ms"`
	MaintenanceInterval int64              `json:"maintenance_interval_ms" yaml:"maintenance_interval_ms"`
	MaxCacheSize        int                `json:"max_cache_size" yaml:"max_cache_size"`
	DisableAudit        bool               `json:"disable_audit" yaml:"disable_audit"`
	DisableCache        bool               `json:"disable_cache" yaml:"disable_cache"`
	SessionCache        SessionCacheConfig `json:"session_cache" yaml:"session_cache"`
}

// SeedConfig lists entities created while the engine initializes.
// Creation order is permissions, roles, users, then assignments, so
// references resolve forward.
type SeedConfig struct {
	Permissions []*Permission    `json:"permissions" yaml:"permissions"`
	Roles       []*Role          `json:"roles" yaml:"roles"`
	Users       []*User          `json:"users" yaml:"users"`
	Assignments []RoleAssignment `json:"assignments" yaml:"assignments"`
}

type RoleAssignment struct {
	UserID string `json:"user_id" yaml:"user_id"`
	RoleID string `json:"role_id" yaml:"role_id"`
}

const (
	defaultCacheTTL            = 5 * time.Minute
	defaultSessionCheckTTL     = time.Minute
	defaultAuditRetention      = 30 * 24 * time.Hour
	defaultMaintenanceInterval = time.Minute
	defaultMaxCacheSize        = 10_000
)

// DefaultConfig returns a config with every knob at its default and
// an empty seed.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			CacheTTL:            defaultCacheTTL.Milliseconds(),
			SessionCheckTTL:     defaultSessionCheckTTL.Milliseconds(),
			AuditRetention:      defaultAuditRetention.Milliseconds(),
			MaintenanceInterval: defaultMaintenanceInterval.Milliseconds(),
			MaxCacheSize:        defaultMaxCacheSize,
		},
	}
}

// engineSettings is EngineConfig resolved into runtime units.
type engineSettings struct {
	cacheTTL            time.Duration
	sessionCheckTTL     time.Duration
	auditRetention      time.Duration
	maintenanceInterval time.Duration
	maxCacheSize        int
	auditEnabled        bool
	cacheEnabled        bool
	sessionCache        SessionCacheConfig
}

func (c EngineConfig) settings() engineSettings {
	// SessionCheckTTL has no fallback: zero or negative disables
	// session memoization entirely.
	s := engineSettings{
		cacheTTL:            defaultCacheTTL,
		auditRetention:      defaultAuditRetention,
		maintenanceInterval: defaultMaintenanceInterval,
		maxCacheSize:        defaultMaxCacheSize,
		auditEnabled:        !c.DisableAudit,
		cacheEnabled:        !c.DisableCache,
		sessionCache:        c.SessionCache,
	}
	if c.CacheTTL > 0 {
		s.cacheTTL = time.Duration(c.CacheTTL) * time.Millisecond
	}
	if c.SessionCheckTTL > 0 {
		s.sessionCheckTTL = time.Duration(c.SessionCheckTTL) * time.Millisecond
	}
	if c.AuditRetention > 0 {
		s.auditRetention = time.Duration(c.AuditRetention) * time.Millisecond
	}
	if c.MaintenanceInterval > 0 {
		s.maintenanceInterval = time.Duration(c.MaintenanceInterval) * time.Millisecond
	}
	if c.MaxCacheSize > 0 {
		s.maxCacheSize = c.MaxCacheSize
	}
	return s
}

// Validate checks the seed for shape errors before anything is
// created: required ids, duplicate ids within a kind, malformed
// permissions. Dangling references are allowed; the directory
// tolerates them at resolution time.
func (c *Config) Validate() error {
	permIDs := make(map[string]bool, len(c.Seed.Permissions))
	for _, p := range c.Seed.Permissions {
		if p == nil {
			return fmt.Errorf("nil permission in seed")
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if permIDs[p.ID] {
			return fmt.Errorf("duplicate permission ID %s", p.ID)
		}
		permIDs[p.ID] = true
	}
	roleIDs := make(map[string]bool, len(c.Seed.Roles))
	for _, r := range c.Seed.Roles {
		if r == nil {
			return fmt.Errorf("nil role in seed")
		}
		if r.ID == "" {
			return fmt.Errorf("role ID is required")
		}
		if roleIDs[r.ID] {
			return fmt.Errorf("duplicate role ID %s", r.ID)
		}
		roleIDs[r.ID] = true
	}
	userIDs := make(map[string]bool, len(c.Seed.Users))
	for _, u := range c.Seed.Users {
		if u == nil {
			return fmt.Errorf("nil user in seed")
		}
		if u.ID == "" {
			return fmt.Errorf("user ID is required")
		}
		if userIDs[u.ID] {
			return fmt.Errorf("duplicate user ID %s", u.ID)
		}
		userIDs[u.ID] = true
	}
	for _, a := range c.Seed.Assignments {
		if a.UserID == "" || a.RoleID == "" {
			return fmt.Errorf("assignment requires both user_id and role_id")
		}
	}
	return nil
}

// ============================================================================
// CONFIG LOADER
// ============================================================================

// ConfigLoader loads configuration from various formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBinary loads from the compact binary format
func (l *ConfigLoader) LoadBinary(data []byte) (*Config, error) {
	return decodeBinaryConfig(bytes.NewReader(data))
}

// EncodeBinaryConfig encodes config to the compact binary format
func EncodeBinaryConfig(cfg *Config) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encodeBinaryConfig(cfg, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ============================================================================
// CONDITION ENCODING
// ============================================================================

const (
	condTypeTimeRange = "time_range"
	condTypeIPRange   = "ip_range"
	condTypeAttribute = "attribute"
	condTypeCustom    = "custom"
)

// conditionSpec is the tagged wire form of a Condition. Times accept
// any layout date.Parse understands and marshal back as RFC 3339.
// Note that attribute matching is exact on type as well as value, so
// an expected number loaded from JSON arrives as float64.
type conditionSpec struct {
	Type     string         `json:"type" yaml:"type"`
	Start    string         `json:"start,omitempty" yaml:"start,omitempty"`
	End      string         `json:"end,omitempty" yaml:"end,omitempty"`
	Allowed  []string       `json:"allowed,omitempty" yaml:"allowed,omitempty"`
	Key      string         `json:"key,omitempty" yaml:"key,omitempty"`
	Expected any            `json:"expected,omitempty" yaml:"expected,omitempty"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

func specFromCondition(c Condition) (conditionSpec, error) {
	switch v := c.(type) {
	case TimeRangeCondition:
		s := conditionSpec{Type: condTypeTimeRange}
		if !v.Start.IsZero() {
			s.Start = v.Start.Format(time.RFC3339Nano)
		}
		if !v.End.IsZero() {
			s.End = v.End.Format(time.RFC3339Nano)
		}
		return s, nil
	case IPRangeCondition:
		return conditionSpec{Type: condTypeIPRange, Allowed: v.Allowed}, nil
	case AttributeCondition:
		return conditionSpec{Type: condTypeAttribute, Key: v.Key, Expected: v.Expected}, nil
	case CustomCondition:
		return conditionSpec{Type: condTypeCustom, Name: v.Name, Params: v.Params}, nil
	default:
		return conditionSpec{}, fmt.Errorf("unknown condition type %T", c)
	}
}

func (s conditionSpec) toCondition() (Condition, error) {
	switch s.Type {
	case condTypeTimeRange:
		start, err := parseConditionTime(s.Start)
		if err != nil {
			return nil, fmt.Errorf("time_range start: %w", err)
		}
		end, err := parseConditionTime(s.End)
		if err != nil {
			return nil, fmt.Errorf("time_range end: %w", err)
		}
		return TimeRangeCondition{Start: start, End: end}, nil
	case condTypeIPRange:
		return IPRangeCondition{Allowed: s.Allowed}, nil
	case condTypeAttribute:
		return AttributeCondition{Key: s.Key, Expected: s.Expected}, nil
	case condTypeCustom:
		return CustomCondition{Name: s.Name, Params: s.Params}, nil
	default:
		return nil, fmt.Errorf("unknown condition type %q", s.Type)
	}
}

func parseConditionTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return date.Parse(s)
}

func (cs Conditions) specs() ([]conditionSpec, error) {
	specs := make([]conditionSpec, 0, len(cs))
	for _, c := range cs {
		s, err := specFromCondition(c)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func conditionsFromSpecs(specs []conditionSpec) (Conditions, error) {
	cs := make(Conditions, 0, len(specs))
	for _, s := range specs {
		c, err := s.toCondition()
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	return cs, nil
}

func (cs Conditions) MarshalJSON() ([]byte, error) {
	specs, err := cs.specs()
	if err != nil {
		return nil, err
	}
	return json.Marshal(specs)
}

func (cs *Conditions) UnmarshalJSON(data []byte) error {
	var specs []conditionSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return err
	}
	out, err := conditionsFromSpecs(specs)
	if err != nil {
		return err
	}
	*cs = out
	return nil
}

func (cs Conditions) MarshalYAML() (any, error) {
	return cs.specs()
}

func (cs *Conditions) UnmarshalYAML(value *yaml.Node) error {
	var specs []conditionSpec
	if err := value.Decode(&specs); err != nil {
		return err
	}
	out, err := conditionsFromSpecs(specs)
	if err != nil {
		return err
	}
	*cs = out
	return nil
}

// ============================================================================
// BINARY PROTOCOL
// ============================================================================

const (
	binaryMagic   = 0x504D // "PM"
	binaryVersion = 1
)

const (
	sectionEngine      = 0x01
	sectionPermissions = 0x02
	sectionRoles       = 0x03
	sectionUsers       = 0x04
	sectionAssignments = 0x05
)

const (
	condTagTimeRange = 1
	condTagIPRange   = 2
	condTagAttribute = 3
	condTagCustom    = 4
)

func encodeBinaryConfig(cfg *Config, w io.Writer) error {
	buf := &bytes.Buffer{}

	// Header: magic(2) + version(2) + config_version(2)
	binary.Write(buf, binary.LittleEndian, uint16(binaryMagic))
	binary.Write(buf, binary.LittleEndian, uint16(binaryVersion))
	binary.Write(buf, binary.LittleEndian, cfg.Version)

	var err error
	writeSection(buf, sectionEngine, func(b *bytes.Buffer) { encodeEngineConfig(b, &cfg.Engine) })
	writeSection(buf, sectionPermissions, func(b *bytes.Buffer) {
		if e := encodePermissions(b, cfg.Seed.Permissions); e != nil && err == nil {
			err = e
		}
	})
	writeSection(buf, sectionRoles, func(b *bytes.Buffer) { encodeRoles(b, cfg.Seed.Roles) })
	writeSection(buf, sectionUsers, func(b *bytes.Buffer) { encodeUsers(b, cfg.Seed.Users) })
	writeSection(buf, sectionAssignments, func(b *bytes.Buffer) { encodeAssignments(b, cfg.Seed.Assignments) })
	if err != nil {
		return err
	}

	_, err = w.Write(buf.Bytes())
	return err
}

func decodeBinaryConfig(r io.Reader) (*Config, error) {
	cfg := &Config{}

	var magic, ver, cfgVer uint16
	binary.Read(r, binary.LittleEndian, &magic)
	binary.Read(r, binary.LittleEndian, &ver)
	binary.Read(r, binary.LittleEndian, &cfgVer)

	if magic != binaryMagic {
		return nil, fmt.Errorf("invalid magic: %x", magic)
	}
	if ver != binaryVersion {
		return nil, fmt.Errorf("unsupported version: %d", ver)
	}
	cfg.Version = cfgVer

	for {
		var tag uint8
		if err := binary.Read(r, binary.LittleEndian, &tag); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		var size uint32
		binary.Read(r, binary.LittleEndian, &size)
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("truncated section %#x: %w", tag, err)
		}

		var err error
		switch tag {
		case sectionEngine:
			cfg.Engine = decodeEngineConfig(data)
		case sectionPermissions:
			cfg.Seed.Permissions, err = decodePermissions(data)
		case sectionRoles:
			cfg.Seed.Roles = decodeRoles(data)
		case sectionUsers:
			cfg.Seed.Users = decodeUsers(data)
		case sectionAssignments:
			cfg.Seed.Assignments = decodeAssignments(data)
		}
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func writeSection(buf *bytes.Buffer, tag uint8, fn func(*bytes.Buffer)) {
	tmp := &bytes.Buffer{}
	fn(tmp)
	binary.Write(buf, binary.LittleEndian, tag)
	binary.Write(buf, binary.LittleEndian, uint32(tmp.Len()))
	buf.Write(tmp.Bytes())
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) string {
	var l uint16
	binary.Read(r, binary.LittleEndian, &l)
	b := make([]byte, l)
	r.Read(b)
	return string(b)
}

func writeStringList(buf *bytes.Buffer, list []string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(list)))
	for _, s := range list {
		writeString(buf, s)
	}
}

func readStringList(r *bytes.Reader) []string {
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	list := make([]string, count)
	for i := range list {
		list[i] = readString(r)
	}
	return list
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) bool {
	b, _ := r.ReadByte()
	return b == 1
}

func writeTime(buf *bytes.Buffer, t time.Time) {
	var n int64
	if !t.IsZero() {
		n = t.UnixNano()
	}
	binary.Write(buf, binary.LittleEndian, n)
}

func readTime(r *bytes.Reader) time.Time {
	var n int64
	binary.Read(r, binary.LittleEndian, &n)
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func writeJSON(buf *bytes.Buffer, v any) {
	if v == nil {
		writeString(buf, "")
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		writeString(buf, "")
		return
	}
	writeString(buf, string(b))
}

func readJSONMap(r *bytes.Reader) map[string]any {
	s := readString(r)
	if s == "" || s == "null" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}

func encodePermissions(buf *bytes.Buffer, perms []*Permission) error {
	binary.Write(buf, binary.LittleEndian, uint16(len(perms)))
	for _, p := range perms {
		writeString(buf, p.ID)
		writeString(buf, p.Resource)
		writeStringList(buf, p.Actions)
		binary.Write(buf, binary.LittleEndian, uint16(len(p.Conditions)))
		for _, c := range p.Conditions {
			if err := encodeCondition(buf, c); err != nil {
				return fmt.Errorf("permission %s: %w", p.ID, err)
			}
		}
		writeBool(buf, p.Active)
	}
	return nil
}

func decodePermissions(data []byte) ([]*Permission, error) {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	perms := make([]*Permission, count)
	for i := range perms {
		p := &Permission{}
		p.ID = readString(r)
		p.Resource = readString(r)
		p.Actions = readStringList(r)
		var condCount uint16
		binary.Read(r, binary.LittleEndian, &condCount)
		p.Conditions = make(Conditions, condCount)
		for j := range p.Conditions {
			c, err := decodeCondition(r)
			if err != nil {
				return nil, fmt.Errorf("permission %s: %w", p.ID, err)
			}
			p.Conditions[j] = c
		}
		p.Active = readBool(r)
		perms[i] = p
	}
	return perms, nil
}

func encodeCondition(buf *bytes.Buffer, c Condition) error {
	switch v := c.(type) {
	case TimeRangeCondition:
		buf.WriteByte(condTagTimeRange)
		writeTime(buf, v.Start)
		writeTime(buf, v.End)
	case IPRangeCondition:
		buf.WriteByte(condTagIPRange)
		writeStringList(buf, v.Allowed)
	case AttributeCondition:
		buf.WriteByte(condTagAttribute)
		writeString(buf, v.Key)
		writeJSON(buf, v.Expected)
	case CustomCondition:
		buf.WriteByte(condTagCustom)
		writeString(buf, v.Name)
		writeJSON(buf, v.Params)
	default:
		return fmt.Errorf("unknown condition type %T", c)
	}
	return nil
}

func decodeCondition(r *bytes.Reader) (Condition, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case condTagTimeRange:
		return TimeRangeCondition{Start: readTime(r), End: readTime(r)}, nil
	case condTagIPRange:
		return IPRangeCondition{Allowed: readStringList(r)}, nil
	case condTagAttribute:
		cond := AttributeCondition{Key: readString(r)}
		if s := readString(r); s != "" && s != "null" {
			var v any
			if err := json.Unmarshal([]byte(s), &v); err == nil {
				cond.Expected = v
			}
		}
		return cond, nil
	case condTagCustom:
		return CustomCondition{Name: readString(r), Params: readJSONMap(r)}, nil
	default:
		return nil, fmt.Errorf("unknown condition tag %#x", tag)
	}
}

func encodeRoles(buf *bytes.Buffer, roles []*Role) {
	binary.Write(buf, binary.LittleEndian, uint16(len(roles)))
	for _, role := range roles {
		writeString(buf, role.ID)
		writeStringList(buf, role.PermissionIDs)
		writeStringList(buf, role.Inherits)
		writeBool(buf, role.Active)
		writeJSON(buf, role.Metadata)
	}
}

func decodeRoles(data []byte) []*Role {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	roles := make([]*Role, count)
	for i := range roles {
		role := &Role{}
		role.ID = readString(r)
		role.PermissionIDs = readStringList(r)
		role.Inherits = readStringList(r)
		role.Active = readBool(r)
		role.Metadata = readJSONMap(r)
		roles[i] = role
	}
	return roles
}

func encodeUsers(buf *bytes.Buffer, users []*User) {
	binary.Write(buf, binary.LittleEndian, uint16(len(users)))
	for _, u := range users {
		writeString(buf, u.ID)
		writeStringList(buf, u.RoleIDs)
		writeStringList(buf, u.PermissionIDs)
		writeBool(buf, u.Active)
		writeTime(buf, u.CreatedAt)
		writeTime(buf, u.LastLoginAt)
		writeJSON(buf, u.Metadata)
	}
}

func decodeUsers(data []byte) []*User {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	users := make([]*User, count)
	for i := range users {
		u := &User{}
		u.ID = readString(r)
		u.RoleIDs = readStringList(r)
		u.PermissionIDs = readStringList(r)
		u.Active = readBool(r)
		u.CreatedAt = readTime(r)
		u.LastLoginAt = readTime(r)
		u.Metadata = readJSONMap(r)
		users[i] = u
	}
	return users
}

func encodeAssignments(buf *bytes.Buffer, assignments []RoleAssignment) {
	binary.Write(buf, binary.LittleEndian, uint16(len(assignments)))
	for _, a := range assignments {
		writeString(buf, a.UserID)
		writeString(buf, a.RoleID)
	}
}

func decodeAssignments(data []byte) []RoleAssignment {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	assignments := make([]RoleAssignment, count)
	for i := range assignments {
		assignments[i].UserID = readString(r)
		assignments[i].RoleID = readString(r)
	}
	return assignments
}

func encodeEngineConfig(buf *bytes.Buffer, cfg *EngineConfig) {
	binary.Write(buf, binary.LittleEndian, cfg.CacheTTL)
	binary.Write(buf, binary.LittleEndian, cfg.SessionCheckTTL)
	binary.Write(buf, binary.LittleEndian, cfg.AuditRetention)
	binary.Write(buf, binary.LittleEndian, cfg.MaintenanceInterval)
	binary.Write(buf, binary.LittleEndian, int32(cfg.MaxCacheSize))
	writeBool(buf, cfg.DisableAudit)
	writeBool(buf, cfg.DisableCache)
	binary.Write(buf, binary.LittleEndian, cfg.SessionCache.NumCounters)
	binary.Write(buf, binary.LittleEndian, cfg.SessionCache.MaxCost)
	binary.Write(buf, binary.LittleEndian, cfg.SessionCache.BufferItems)
}

func decodeEngineConfig(data []byte) EngineConfig {
	r := bytes.NewReader(data)
	cfg := EngineConfig{}
	binary.Read(r, binary.LittleEndian, &cfg.CacheTTL)
	binary.Read(r, binary.LittleEndian, &cfg.SessionCheckTTL)
	binary.Read(r, binary.LittleEndian, &cfg.AuditRetention)
	binary.Read(r, binary.LittleEndian, &cfg.MaintenanceInterval)
	var size int32
	binary.Read(r, binary.LittleEndian, &size)
	cfg.MaxCacheSize = int(size)
	cfg.DisableAudit = readBool(r)
	cfg.DisableCache = readBool(r)
	binary.Read(r, binary.LittleEndian, &cfg.SessionCache.NumCounters)
	binary.Read(r, binary.LittleEndian, &cfg.SessionCache.MaxCost)
	binary.Read(r, binary.LittleEndian, &cfg.SessionCache.BufferItems)
	return cfg
}

// ============================================================================
// APPLY
// ============================================================================

// ApplyConfig applies settings to a running engine and creates any
// seed entities not already present. Existing entities are left
// untouched, so applying the same config twice is a no-op.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return nil
	}
	e.updateSettings(cfg.Engine.settings())
	return e.applySeed(ctx, cfg.Seed)
}

func (e *Engine) applySeed(ctx context.Context, seed SeedConfig) error {
	for _, p := range seed.Permissions {
		if _, err := e.directory.GetPermission(p.ID); err == nil {
			continue
		}
		if err := e.CreatePermission(ctx, p); err != nil {
			return fmt.Errorf("create permission %s: %w", p.ID, err)
		}
	}
	for _, r := range seed.Roles {
		if _, err := e.directory.GetRole(r.ID); err == nil {
			continue
		}
		if err := e.CreateRole(ctx, r); err != nil {
			return fmt.Errorf("create role %s: %w", r.ID, err)
		}
	}
	for _, u := range seed.Users {
		if _, err := e.directory.GetUser(u.ID); err == nil {
			continue
		}
		if err := e.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("create user %s: %w", u.ID, err)
		}
	}
	for _, a := range seed.Assignments {
		if err := e.AssignRole(ctx, a.UserID, a.RoleID); err != nil && !errors.Is(err, ErrRoleAlreadyAssigned) {
			return fmt.Errorf("assign role %s to %s: %w", a.RoleID, a.UserID, err)
		}
	}
	return nil
}
