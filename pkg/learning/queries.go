package learning

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Humphrey-He/hquery/pkg/cache"
	"github.com/Humphrey-He/hquery/pkg/codec"
	"github.com/Humphrey-He/hquery/pkg/errors"
	"github.com/Humphrey-He/hquery/pkg/learning/keys"
	"github.com/Humphrey-He/hquery/pkg/loader"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// endpoint maps a key to the API path serving it.
type endpoint func(key querykey.Key) (string, url.Values, error)

func fixed(path string) endpoint {
	return func(querykey.Key) (string, url.Values, error) {
		return path, nil, nil
	}
}

// byID formats the id found at segment idx into pattern.
func byID(pattern string, idx int) endpoint {
	return func(key querykey.Key) (string, url.Values, error) {
		if idx >= len(key.Segments) {
			return "", nil, invalidKey(key)
		}
		v, err := strconv.ParseInt(key.Segments[idx], 10, 64)
		if err != nil || v <= 0 {
			return "", nil, invalidKey(key)
		}
		return fmt.Sprintf(pattern, v), nil, nil
	}
}

func paged(path string) endpoint {
	return func(key querykey.Key) (string, url.Values, error) {
		f := keys.FilterFromParams(key.Params)
		q := url.Values{}
		q.Set("page", strconv.Itoa(f.Page))
		if f.Size > 0 {
			q.Set("size", strconv.Itoa(f.Size))
		}
		if f.CategoryID > 0 {
			q.Set("categoryId", strconv.FormatInt(f.CategoryID, 10))
		}
		if f.Level != "" {
			q.Set("level", f.Level)
		}
		if f.Keyword != "" {
			q.Set("keyword", f.Keyword)
		}
		return path, q, nil
	}
}

func invalidKey(key querykey.Key) error {
	return errors.Validation("load "+key.String(), errors.NewKeyError(key.String(), errors.ErrInvalidKey))
}

func get[T any](api *Client, ep endpoint) loader.Loader {
	return loader.Typed(func(ctx context.Context, key querykey.Key) (T, error) {
		var out T
		path, query, err := ep(key)
		if err != nil {
			return out, err
		}
		err = api.Get(ctx, path, query, &out)
		return out, err
	})
}

// RegisterLoaders binds every read view of the platform to its endpoint.
//
// RegisterLoaders 将平台的每个读取视图绑定到对应的接口。
//
// Parameters:
//   - reg: The registry the cache resolves loaders from
//   - api: The API client
func RegisterLoaders(reg *loader.Registry, api *Client) {
	reg.Register(keys.CategoryList(), get[[]Category](api, fixed("/categories")))
	reg.Register(keys.CategoriesWithProgress(), get[[]CategoryWithProgress](api, fixed("/categories/with-progress")))
	reg.Register(keys.CategoriesRoot.Append("detail"), get[Category](api, byID("/categories/%d", 2)))
	reg.Register(keys.CategoriesRoot.Append("stats"), get[CategoryStats](api, byID("/categories/%d/stats", 2)))

	reg.Register(keys.QuestionListPrefix(), get[Page[Question]](api, paged("/questions")))
	reg.Register(keys.QuestionSummaryPrefix(), get[Page[QuestionSummary]](api, paged("/questions/summary")))
	reg.Register(keys.QuestionsRoot.Append("detail"), get[Question](api, byID("/questions/%d", 2)))
	reg.Register(keys.QuestionStats(), get[QuestionStats](api, fixed("/questions/stats")))

	reg.Register(keys.ProgressRoot.Append("question"), get[QuestionProgress](api, byID("/progress/questions/%d", 2)))
	reg.Register(keys.UserStats(), get[UserStats](api, fixed("/progress/stats")))
	reg.Register(keys.RecentActivity(), get[[]Activity](api, fixed("/progress/recent")))

	reg.Register(keys.SolutionList(), get[[]Solution](api, fixed("/solutions")))
	reg.Register(keys.SolutionsRoot.Append("detail"), get[Solution](api, byID("/solutions/%d", 2)))
	reg.Register(keys.SolutionsRoot.Append("by-question"), get[[]Solution](api, byID("/questions/%d/solutions", 2)))
	reg.Register(keys.SolutionStats(), get[SolutionStats](api, fixed("/solutions/stats")))

	reg.Register(keys.TopicList(), get[[]Topic](api, fixed("/course/topics")))
	reg.Register(keys.CourseRoot.Append("topics", "detail"), get[Topic](api, byID("/course/topics/%d", 3)))
	reg.Register(keys.CourseRoot.Append("documents", "by-topic"), get[[]Document](api, byID("/course/topics/%d/documents", 3)))
	reg.Register(keys.CourseRoot.Append("documents", "detail"), get[Document](api, byID("/course/documents/%d", 3)))
	reg.Register(keys.CourseStats(), get[CourseStats](api, fixed("/course/stats")))

	reg.Register(keys.SystemSettings(), get[Settings](api, fixed("/settings")))
	reg.Register(keys.AdminStats(), get[AdminStats](api, fixed("/admin/stats")))
	reg.Register(keys.UploadConfig(), get[UploadConfig](api, fixed("/files/upload-config")))
	reg.Register(keys.CurrentUser(), get[User](api, fixed("/auth/me")))
}

// Profile is the configuration of every key under Prefix.
type Profile = cache.Profile

// DefaultProfiles returns the built-in per-pattern configuration: reference
// data and settings stay fresh for ten minutes, everything else is always
// stale.
//
// DefaultProfiles 返回内置的按模式配置：参考数据和设置保持十分钟新鲜，其余始终过期。
func DefaultProfiles() []Profile {
	return []Profile{
		{Prefix: keys.UploadConfig(), Options: []cache.Option{cache.WithStaleTime(10 * time.Minute)}},
		{Prefix: keys.SettingsRoot, Options: []cache.Option{cache.WithStaleTime(10 * time.Minute)}},
	}
}

// Query returns the typed data of key, fetching when absent or stale.
//
// Query 返回key的强类型数据，缺失或过期时发起请求。
func Query[T any](ctx context.Context, c *cache.Client, key querykey.Key, opts ...cache.Option) (T, error) {
	var zero T
	v, err := c.Get(ctx, key, opts...)
	if err != nil {
		return zero, err
	}
	out, err := codec.Convert[T](codec.DefaultCodec(), v)
	if err != nil {
		return zero, fmt.Errorf("learning: %s holds %T, not %T: %w", key, v, zero, err)
	}
	return out, nil
}
