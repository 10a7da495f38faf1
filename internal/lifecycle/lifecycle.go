// Package lifecycle 定义计划、课题、提交物的状态机。
//
// 每台状态机是一张封闭的 (当前状态, 动作) → (目标状态, 守卫) 表。
// 表中不存在的组合与守卫失败一律返回 invalid_transition，本包不做任何 I/O。
package lifecycle

import (
	"sort"

	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

// RoleSystem 系统内部操作者（例如课题满额时自动迁移到 full）
const RoleSystem = "system"

// Actor 操作者身份，由宿主层（JWT）解析后显式传入
type Actor struct {
	UserID string
	Role   string
}

// System 返回系统操作者
func System() Actor { return Actor{Role: RoleSystem} }

func (a Actor) IsAdmin() bool          { return a.Role == model.RoleAdmin }
func (a Actor) IsDepartmentHead() bool { return a.Role == model.RoleDepartmentHead }
func (a Actor) IsAdvisor() bool        { return a.Role == model.RoleAdvisor }
func (a Actor) IsStudent() bool        { return a.Role == model.RoleStudent }
func (a Actor) IsSystem() bool         { return a.Role == RoleSystem }

// Facts 守卫判断所需的聚合事实，由编排层在事务内读取后传入
type Facts struct {
	IsOwner         bool // 操作者是否为计划创建者 / 课题提出者
	IsReviewer      bool // 操作者是否为提交物的审核导师
	MilestoneCount  int
	RegisteredCount int
	MaxGroups       int
}

// Guard 迁移守卫
type Guard func(actor Actor, facts Facts) bool

// Transition 状态迁移定义；To 为空表示自环（状态不变的受控操作，如 edit）
type Transition struct {
	From   []string
	Action string
	To     string
	Guard  Guard
}

type edge struct {
	to    string
	guard Guard
}

// Machine 封闭状态机
type Machine struct {
	name    string
	states  []string
	actions []string
	table   map[string]map[string]edge
}

// NewMachine 根据迁移表构建状态机
func NewMachine(name string, states []string, transitions []Transition) *Machine {
	m := &Machine{
		name:   name,
		states: states,
		table:  make(map[string]map[string]edge, len(states)),
	}
	seen := make(map[string]bool)
	for _, t := range transitions {
		if !seen[t.Action] {
			seen[t.Action] = true
			m.actions = append(m.actions, t.Action)
		}
		for _, from := range t.From {
			if m.table[from] == nil {
				m.table[from] = make(map[string]edge)
			}
			to := t.To
			if to == "" {
				to = from
			}
			m.table[from][t.Action] = edge{to: to, guard: t.Guard}
		}
	}
	sort.Strings(m.actions)
	return m
}

// Name 状态机名称
func (m *Machine) Name() string { return m.name }

// States 全部状态
func (m *Machine) States() []string { return append([]string(nil), m.states...) }

// AllActions 全部动作（已排序）
func (m *Machine) AllActions() []string { return append([]string(nil), m.actions...) }

// Next 计算迁移目标状态；不合法时返回 invalid_transition 错误
func (m *Machine) Next(from, action string, actor Actor, facts Facts) (string, error) {
	e, ok := m.table[from][action]
	if !ok {
		return "", pkgerrors.Newf(pkgerrors.KindInvalidTransition,
			"%s 当前状态 %s 不允许执行 %s", m.name, from, action)
	}
	if e.guard != nil && !e.guard(actor, facts) {
		return "", pkgerrors.Newf(pkgerrors.KindInvalidTransition,
			"%s 当前条件不满足 %s 的前置要求", m.name, action)
	}
	return e.to, nil
}

// Can 判断迁移是否合法
func (m *Machine) Can(from, action string, actor Actor, facts Facts) bool {
	_, err := m.Next(from, action, actor, facts)
	return err == nil
}

// Actions 列出当前操作者在该状态下可执行的动作
func (m *Machine) Actions(from string, actor Actor, facts Facts) []string {
	out := make([]string, 0)
	for _, action := range m.actions {
		if m.Can(from, action, actor, facts) {
			out = append(out, action)
		}
	}
	return out
}

// ── 通用守卫 ──

func all(guards ...Guard) Guard {
	return func(a Actor, f Facts) bool {
		for _, g := range guards {
			if !g(a, f) {
				return false
			}
		}
		return true
	}
}

func anyOf(guards ...Guard) Guard {
	return func(a Actor, f Facts) bool {
		for _, g := range guards {
			if g(a, f) {
				return true
			}
		}
		return false
	}
}

func isOwner(_ Actor, f Facts) bool       { return f.IsOwner }
func isReviewer(_ Actor, f Facts) bool    { return f.IsReviewer }
func isAdmin(a Actor, _ Facts) bool       { return a.IsAdmin() }
func isDeptHead(a Actor, _ Facts) bool    { return a.IsDepartmentHead() }
func isSystem(a Actor, _ Facts) bool      { return a.IsSystem() }
func hasMilestones(_ Actor, f Facts) bool { return f.MilestoneCount >= 1 }
