package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
)

// orderRepo 内存版订单仓储，语义与 MySQL 实现保持一致：
// 聚合整体读写、乐观锁版本校验、审计记录只追加、稳定排序分页。
// 测试与本地演示用。
type orderRepo struct {
	mu      sync.RWMutex
	seq     int64
	itemSeq int64
	histSeq int64
	byID    map[int64]*order.Order
	// usernames 用于 Search 里的对手方用户名匹配，可为 nil
	usernames map[int64]string
}

// NewOrderRepository 创建内存订单仓储。
// usernames 为 userID -> username 映射，用于列表搜索，可传 nil。
func NewOrderRepository(usernames map[int64]string) order.Repository {
	return &orderRepo{
		byID:      make(map[int64]*order.Order),
		usernames: usernames,
	}
}

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	o.ID = r.seq
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	for i := range o.Items {
		r.itemSeq++
		o.Items[i].ID = r.itemSeq
		o.Items[i].OrderID = o.ID
	}
	for i := range o.StatusHistory {
		r.histSeq++
		o.StatusHistory[i].ID = r.histSeq
		o.StatusHistory[i].OrderID = o.ID
	}
	r.byID[o.ID] = clone(o)
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.byID[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return clone(o), nil
}

func (r *orderRepo) GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.byID {
		if o.OrderNo == orderNo {
			return clone(o), nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (r *orderRepo) Save(ctx context.Context, o *order.Order, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[o.ID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if current.Version != expectedVersion {
		return order.ErrConcurrentModification
	}

	o.Version = expectedVersion + 1
	o.UpdatedAt = time.Now()
	for i := range o.Items {
		if o.Items[i].ID == 0 {
			r.itemSeq++
			o.Items[i].ID = r.itemSeq
		}
		o.Items[i].OrderID = o.ID
	}
	for i := range o.StatusHistory {
		if o.StatusHistory[i].ID == 0 {
			r.histSeq++
			o.StatusHistory[i].ID = r.histSeq
		}
		o.StatusHistory[i].OrderID = o.ID
	}
	r.byID[o.ID] = clone(o)
	return nil
}

func (r *orderRepo) List(ctx context.Context, q *order.ListQuery) ([]*order.Order, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*order.Order, 0, len(r.byID))
	for _, o := range r.byID {
		if r.matches(o, q) {
			matched = append(matched, o)
		}
	}

	// CreatedAt 倒序，ID 倒序兜底，保证分页结果稳定
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := q.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	out := make([]*order.Order, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, clone(o))
	}
	return out, total, nil
}

func (r *orderRepo) matches(o *order.Order, q *order.ListQuery) bool {
	if q.ViewerID != 0 && !o.Involves(q.ViewerID) {
		return false
	}
	if q.Status != "" && o.Status != q.Status {
		return false
	}
	if !q.From.IsZero() && o.CreatedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !o.CreatedAt.Before(q.To) {
		return false
	}
	if q.Search != "" {
		kw := strings.ToLower(q.Search)
		if !r.searchHit(o, kw) {
			return false
		}
	}
	return true
}

func (r *orderRepo) searchHit(o *order.Order, kw string) bool {
	if strings.Contains(strings.ToLower(o.OrderNo), kw) {
		return true
	}
	if r.usernames != nil {
		if strings.Contains(strings.ToLower(r.usernames[o.BuyerID]), kw) {
			return true
		}
		if strings.Contains(strings.ToLower(r.usernames[o.SellerID]), kw) {
			return true
		}
	}
	for i := range o.Items {
		if strings.Contains(strings.ToLower(o.Items[i].ProductName), kw) {
			return true
		}
	}
	return false
}

// clone 深拷贝聚合，避免调用方共享内部切片
func clone(o *order.Order) *order.Order {
	cp := *o
	cp.Items = make([]order.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	cp.StatusHistory = make([]order.StatusChange, len(o.StatusHistory))
	copy(cp.StatusHistory, o.StatusHistory)
	return &cp
}
