// Package accounts provides a cached, read-through view of the backend's
// account list and the account creation flow.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"moneymanager/internal/cache"
	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
)

const listKey = "accounts"

// Source is the part of the backend the directory needs.
type Source interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	CreateAccount(ctx context.Context, a core.NewAccount) (core.Account, error)
}

// Directory caches the account list. Concurrent misses share one backend
// call.
type Directory struct {
	src   Source
	cache *cache.LRUCache[[]core.Account]
	group singleflight.Group

	// gen is bumped by Invalidate; a fetch started under an older
	// generation is returned to its callers but never cached.
	mu  sync.Mutex
	gen uint64

	validate *validator.Validate
	logger   *applog.Logger
}

type accountForm struct {
	Name string `validate:"required,max=64,accountname"`
}

// NewDirectory builds a directory whose cached list lives for ttl.
func NewDirectory(src Source, ttl time.Duration, logger *applog.Logger) *Directory {
	if logger == nil {
		logger = applog.Default(applog.ComponentAccounts)
	}
	validate := validator.New()
	validate.RegisterValidation("accountname", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if unicode.IsControl(r) {
				return false
			}
		}
		return true
	})
	return &Directory{
		src:      src,
		cache:    cache.NewLRUCache[[]core.Account](1, ttl),
		validate: validate,
		logger:   logger.WithComponent(applog.ComponentAccounts),
	}
}

// Cache exposes the underlying cache for the expiry sweep.
func (d *Directory) Cache() cache.Cleaner {
	return d.cache
}

// List returns the accounts, from cache when fresh. The returned slice is a
// copy the caller may keep.
func (d *Directory) List(ctx context.Context) ([]core.Account, error) {
	if list, ok := d.cache.Get(listKey); ok {
		return clone(list), nil
	}

	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()

	v, err, shared := d.group.Do(listKey+"/"+strconv.FormatUint(gen, 10), func() (any, error) {
		list, err := d.src.ListAccounts(ctx)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		if d.gen == gen {
			d.cache.Set(listKey, list)
		}
		d.mu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	list := v.([]core.Account)
	d.logger.DebugContext(ctx, "Accounts loaded", "count", len(list), "shared", shared)
	return clone(list), nil
}

// Invalidate drops the cached list. Called after anything that moves a
// balance.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.gen++
	d.cache.Delete(listKey)
	d.mu.Unlock()
}

// Create validates the name and creates an account with a zero balance.
func (d *Directory) Create(ctx context.Context, name string) (core.Account, error) {
	name = strings.TrimSpace(name)

	verr := core.NewValidationError()
	if err := d.validate.Struct(accountForm{Name: name}); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return core.Account{}, fmt.Errorf("validate account: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.Add("name", nameMessage(fe.Tag()))
		}
	}
	if verr.Empty() {
		existing, err := d.List(ctx)
		if err != nil {
			return core.Account{}, err
		}
		for _, a := range existing {
			if strings.EqualFold(strings.TrimSpace(a.Name), name) {
				verr.Add("name", "An account with this name already exists")
				break
			}
		}
	}
	if err := verr.OrNil(); err != nil {
		return core.Account{}, err
	}

	acc, err := d.src.CreateAccount(ctx, core.NewAccount{Name: name})
	if err != nil {
		d.logger.ErrorContext(ctx, "Account creation failed", applog.FieldError, err)
		return core.Account{}, err
	}
	d.Invalidate()
	d.logger.InfoContext(ctx, "Account created", "account_id", acc.ID, "name", acc.Name)
	return acc, nil
}

func nameMessage(tag string) string {
	switch tag {
	case "required":
		return "Account name is required"
	case "max":
		return "Account name must be at most 64 characters"
	default:
		return "Account name contains invalid characters"
	}
}

// Find returns the account with the given id.
func Find(accounts []core.Account, id string) (core.Account, bool) {
	for _, a := range accounts {
		if a.ID == id {
			return a, true
		}
	}
	return core.Account{}, false
}

// Resolve returns the account's name, or fallback when id is unknown.
func Resolve(accounts []core.Account, id, fallback string) string {
	if a, ok := Find(accounts, id); ok && a.Name != "" {
		return a.Name
	}
	return fallback
}

// TotalBalance sums every account balance.
func TotalBalance(accounts []core.Account) core.Money {
	var total int64
	for _, a := range accounts {
		total += a.Balance.Cents
	}
	return core.Money{Cents: total}
}

func clone(list []core.Account) []core.Account {
	return append([]core.Account(nil), list...)
}
