package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
)

// 自动分组优先级
const (
	PriorityMajor = "major"
	PriorityClass = "class"
	PriorityNone  = "none"
)

// allocOptions 一次自动分组的参数（已校验）
type allocOptions struct {
	Size       int
	Priority   string
	Shuffle    bool
	NamePrefix string
	ActorID    string
}

// allocResult 自动分组结果
type allocResult struct {
	Created      []*model.Group
	Filled       []*model.Group
	Placed       []model.User
	Leftovers    []model.User
	FilledGroups int
}

// groupAllocator 自动分组：补员 → 分桶 → 切片
//
// 三个阶段的选择逻辑（selectForFill / bucketize / chunk）是纯函数，只操作候选池下标；
// 每一次实际放置都通过账本预留并在同一事务内写入成员行，不依赖开始时的容量快照。
type groupAllocator struct {
	ledger  Ledger
	now     func() time.Time
	shuffle func(pool []model.User)
}

func newGroupAllocator(now func() time.Time) *groupAllocator {
	return &groupAllocator{
		now: now,
		shuffle: func(pool []model.User) {
			rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		},
	}
}

// run 在调用方事务内执行自动分组，plan 须已加锁读取
func (a *groupAllocator) run(ctx context.Context, tx *repository.Repository, plan *model.ThesisPlan, opts allocOptions) (*allocResult, error) {
	pool, err := tx.Participant.ListPool(ctx, plan.PlanID)
	if err != nil {
		return nil, fmt.Errorf("读取候选池失败: %w", err)
	}
	res := &allocResult{}
	if len(pool) == 0 {
		return res, nil
	}
	if opts.Shuffle {
		a.shuffle(pool)
	}

	keys := make([]string, len(pool))
	for i := range pool {
		keys[i] = affinityKey(&pool[i], opts.Priority)
	}
	placed := make([]bool, len(pool))

	// ── 补员阶段 ──
	groups, err := tx.Group.ListFillable(ctx, plan.PlanID, opts.Size)
	if err != nil {
		return nil, fmt.Errorf("读取可补员小组失败: %w", err)
	}
	for gi := range groups {
		g := &groups[gi]
		picks := selectForFill(keys, placed, groupAffinity(g, opts.Priority), opts.Size-g.MemberCount)
		added := 0
		for _, idx := range picks {
			// ListFillable 已对小组加锁，picks 不超过剩余名额；名额不足说明计数器与行锁失配，整体回滚
			if err := a.place(ctx, tx, g, &pool[idx], opts.ActorID); err != nil {
				return nil, err
			}
			placed[idx] = true
			added++
		}
		if added > 0 {
			res.FilledGroups++
			res.Filled = append(res.Filled, g)
		}
	}

	// ── 分桶 + 切片阶段 ──
	buckets, _ := bucketize(keys, placed)
	names, err := tx.Group.ListNames(ctx, plan.PlanID)
	if err != nil {
		return nil, fmt.Errorf("读取小组名称失败: %w", err)
	}
	seq := nextGroupSeq(names, opts.NamePrefix) - 1
	for _, b := range buckets {
		chunks, _ := chunk(b.members, opts.Size)
		for _, c := range chunks {
			if err := a.ledger.Reserve(ctx, tx, planGroups(plan.PlanID), 1); err != nil {
				if errors.Is(err, ErrPlanGroupLimit) {
					// 计划小组数已达上限，其余学生留在剩余名单
					return a.finish(res, pool, placed), nil
				}
				return nil, err
			}
			seq++
			g, err := a.createGroup(ctx, tx, plan, b.key, opts, seq, pool, c)
			if err != nil {
				return nil, err
			}
			for _, idx := range c {
				placed[idx] = true
			}
			res.Created = append(res.Created, g)
		}
	}

	return a.finish(res, pool, placed), nil
}

// place 补员：预留一个名额并写入成员行；名额不足返回 ErrGroupFull
func (a *groupAllocator) place(ctx context.Context, tx *repository.Repository, g *model.Group, u *model.User, actorID string) error {
	if err := a.ledger.Reserve(ctx, tx, groupMembers(g.GroupID), 1); err != nil {
		return err
	}
	if err := insertMembership(ctx, tx, g.GroupID, u.UserID, actorID, a.now()); err != nil {
		return err
	}
	g.MemberCount++
	return nil
}

// createGroup 新建小组：首位成员为组长，亲和键取桶键
func (a *groupAllocator) createGroup(
	ctx context.Context,
	tx *repository.Repository,
	plan *model.ThesisPlan,
	key string,
	opts allocOptions,
	seq int,
	pool []model.User,
	members []int,
) (*model.Group, error) {
	g := &model.Group{
		PlanID:   plan.PlanID,
		Name:     fmt.Sprintf("%s %d", opts.NamePrefix, seq),
		LeaderID: pool[members[0]].UserID,
		Status:   model.GroupStatusOpen,
	}
	switch opts.Priority {
	case PriorityMajor:
		k := key
		g.MajorID = &k
	case PriorityClass:
		g.HomeClass = key
	}
	g.CreatedBy = &opts.ActorID
	g.UpdatedBy = &opts.ActorID
	if err := tx.Group.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("创建小组失败: %w", err)
	}
	if err := a.ledger.Reserve(ctx, tx, groupMembers(g.GroupID), len(members)); err != nil {
		return nil, err
	}
	g.MemberCount = len(members)
	for _, idx := range members {
		if err := insertMembership(ctx, tx, g.GroupID, pool[idx].UserID, opts.ActorID, a.now()); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (a *groupAllocator) finish(res *allocResult, pool []model.User, placed []bool) *allocResult {
	for i := range pool {
		if placed[i] {
			res.Placed = append(res.Placed, pool[i])
		} else {
			res.Leftovers = append(res.Leftovers, pool[i])
		}
	}
	return res
}

// ────────────────────── 纯函数阶段 ──────────────────────

// nextGroupSeq 默认组名的下一个序号：取 "<prefix> <n>" 中最大的 n 加一
// 小组解散后计数器回落，按计数器取号会与现存组名重复
func nextGroupSeq(names []string, prefix string) int {
	top := 0
	head := prefix + " "
	for _, name := range names {
		rest, ok := strings.CutPrefix(strings.TrimSpace(name), head)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			continue
		}
		if n > top {
			top = n
		}
	}
	return top + 1
}

// affinityKey 学生在当前优先级下的分桶键；空串表示没有可用的键
func affinityKey(u *model.User, priority string) string {
	switch priority {
	case PriorityMajor:
		if u.MajorID == nil {
			return ""
		}
		return *u.MajorID
	case PriorityClass:
		return strings.TrimSpace(u.HomeClass)
	default:
		return "*"
	}
}

// groupAffinity 已有小组声明的亲和键；空串表示任何学生都可加入
func groupAffinity(g *model.Group, priority string) string {
	switch priority {
	case PriorityMajor:
		if g.MajorID == nil {
			return ""
		}
		return *g.MajorID
	case PriorityClass:
		return g.HomeClass
	default:
		return ""
	}
}

// selectForFill 为一个小组挑选至多 n 名未放置的学生
// 先按池顺序取亲和键匹配者，不足时再按池顺序补足
func selectForFill(keys []string, placed []bool, affinity string, n int) []int {
	if n <= 0 {
		return nil
	}
	picks := make([]int, 0, n)
	chosen := make(map[int]bool, n)
	if affinity != "" {
		for i, k := range keys {
			if len(picks) == n {
				return picks
			}
			if !placed[i] && k == affinity {
				picks = append(picks, i)
				chosen[i] = true
			}
		}
	}
	for i := range keys {
		if len(picks) == n {
			break
		}
		if !placed[i] && !chosen[i] {
			picks = append(picks, i)
		}
	}
	return picks
}

type bucket struct {
	key     string
	members []int
}

// bucketize 按分桶键划分未放置的学生；桶按键排序，桶内保持池顺序
// 没有键的学生不参与分桶
func bucketize(keys []string, placed []bool) ([]bucket, []int) {
	index := make(map[string]int)
	var buckets []bucket
	var unkeyed []int
	for i, k := range keys {
		if placed[i] {
			continue
		}
		if k == "" {
			unkeyed = append(unkeyed, i)
			continue
		}
		bi, ok := index[k]
		if !ok {
			bi = len(buckets)
			index[k] = bi
			buckets = append(buckets, bucket{key: k})
		}
		buckets[bi].members = append(buckets[bi].members, i)
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].key < buckets[j].key })
	return buckets, unkeyed
}

// chunk 将成员切分为至多 size 人的连续片段；不足 2 人的片段不成组
func chunk(members []int, size int) ([][]int, []int) {
	var chunks [][]int
	var rest []int
	for start := 0; start < len(members); start += size {
		end := start + size
		if end > len(members) {
			end = len(members)
		}
		if end-start < 2 {
			rest = append(rest, members[start:end]...)
			continue
		}
		chunks = append(chunks, members[start:end])
	}
	return chunks, rest
}
