package learning

import (
	"context"
	"fmt"

	"github.com/Humphrey-He/hquery/pkg/errors"
	"github.com/Humphrey-He/hquery/pkg/learning/keys"
	"github.com/Humphrey-He/hquery/pkg/mutation"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// Mutations holds one handle per write the platform performs.
//
// Mutations 为平台的每种写入持有一个句柄。
type Mutations struct {
	CreateCategory *mutation.Mutation[CategoryInput, Category]
	UpdateCategory *mutation.Mutation[Update[CategoryInput], Category]
	DeleteCategory *mutation.Mutation[int64, struct{}]

	CreateQuestion *mutation.Mutation[QuestionInput, Question]
	UpdateQuestion *mutation.Mutation[Update[QuestionInput], Question]
	// DeleteQuestion takes the owning category as Ref.OwnerID.
	DeleteQuestion *mutation.Mutation[Ref, struct{}]

	UpdateProgress *mutation.Mutation[ProgressInput, QuestionProgress]

	CreateSolution *mutation.Mutation[SolutionInput, Solution]
	UpdateSolution *mutation.Mutation[Update[SolutionInput], Solution]
	// DeleteSolution takes the question as Ref.OwnerID.
	DeleteSolution *mutation.Mutation[Ref, struct{}]

	CreateTopic *mutation.Mutation[TopicInput, Topic]
	UpdateTopic *mutation.Mutation[Update[TopicInput], Topic]
	DeleteTopic *mutation.Mutation[int64, struct{}]

	CreateDocument *mutation.Mutation[DocumentInput, Document]
	UpdateDocument *mutation.Mutation[Update[DocumentInput], Document]
	// DeleteDocument takes the topic as Ref.OwnerID.
	DeleteDocument *mutation.Mutation[Ref, struct{}]

	UpdateSettings *mutation.Mutation[Settings, Settings]
}

type builder struct {
	inv   mutation.Invalidator
	graph *Graph
	opts  []mutation.Option
}

func build[In, Out any](b builder, kind, name string,
	do func(ctx context.Context, in In) (Out, error),
	target func(in In, out Out) Target,
	onSuccess func(inv mutation.Invalidator, in In, out Out),
) *mutation.Mutation[In, Out] {
	g := b.graph
	return mutation.New(b.inv, mutation.Descriptor[In, Out]{
		Name: name,
		Do:   do,
		Affected: func(in In, out Out) []querykey.Key {
			prefixes, _ := g.Affected(kind, target(in, out))
			return prefixes
		},
		Strategy:  g.StrategyOf(kind),
		OnSuccess: onSuccess,
	}, b.opts...)
}

func requireID(op string, id int64) error {
	if id <= 0 {
		return errors.Validation(op, fmt.Errorf("invalid id %d", id))
	}
	return nil
}

func post[In, Out any](api *Client, path string) func(context.Context, In) (Out, error) {
	return func(ctx context.Context, in In) (Out, error) {
		var out Out
		err := api.Post(ctx, path, in, &out)
		return out, err
	}
}

func put[In, Out any](api *Client, pattern string) func(context.Context, Update[In]) (Out, error) {
	return func(ctx context.Context, in Update[In]) (Out, error) {
		var out Out
		path := fmt.Sprintf(pattern, in.ID)
		if err := requireID("PUT "+path, in.ID); err != nil {
			return out, err
		}
		err := api.Put(ctx, path, in.Body, &out)
		return out, err
	}
}

func del(api *Client, pattern string) func(context.Context, int64) (struct{}, error) {
	return func(ctx context.Context, id int64) (struct{}, error) {
		path := fmt.Sprintf(pattern, id)
		if err := requireID("DELETE "+path, id); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, api.Delete(ctx, path)
	}
}

func delRef(api *Client, pattern string) func(context.Context, Ref) (struct{}, error) {
	d := del(api, pattern)
	return func(ctx context.Context, ref Ref) (struct{}, error) {
		return d(ctx, ref.ID)
	}
}

// NewMutations creates every mutation handle of the platform.
//
// NewMutations 创建平台的所有变更句柄。
//
// Parameters:
//   - inv: The query cache
//   - api: The API client
//   - graph: The invalidation graph
//   - opts: Options shared by every handle
//
// Returns:
//   - *Mutations: The mutation handles
func NewMutations(inv mutation.Invalidator, api *Client, graph *Graph, opts ...mutation.Option) *Mutations {
	b := builder{inv: inv, graph: graph, opts: opts}

	return &Mutations{
		CreateCategory: build(b, KindCategory, "category.create",
			post[CategoryInput, Category](api, "/categories"),
			func(_ CategoryInput, out Category) Target { return Target{CategoryID: out.ID} },
			func(inv mutation.Invalidator, _ CategoryInput, out Category) {
				inv.SetData(keys.CategoryDetail(out.ID), out)
			}),
		UpdateCategory: build(b, KindCategory, "category.update",
			put[CategoryInput, Category](api, "/categories/%d"),
			func(in Update[CategoryInput], _ Category) Target { return Target{CategoryID: in.ID} },
			func(inv mutation.Invalidator, in Update[CategoryInput], out Category) {
				inv.SetData(keys.CategoryDetail(in.ID), out)
			}),
		DeleteCategory: build(b, KindCategory, "category.delete",
			del(api, "/categories/%d"),
			func(id int64, _ struct{}) Target { return Target{CategoryID: id} },
			nil),

		CreateQuestion: build(b, KindQuestion, "question.create",
			post[QuestionInput, Question](api, "/questions"),
			func(in QuestionInput, out Question) Target {
				return Target{QuestionID: out.ID, CategoryID: in.CategoryID}
			},
			func(inv mutation.Invalidator, _ QuestionInput, out Question) {
				inv.SetData(keys.QuestionDetail(out.ID), out)
			}),
		UpdateQuestion: build(b, KindQuestion, "question.update",
			put[QuestionInput, Question](api, "/questions/%d"),
			// 分类可能已变更，所有分类统计都失效
			func(in Update[QuestionInput], _ Question) Target { return Target{QuestionID: in.ID} },
			func(inv mutation.Invalidator, in Update[QuestionInput], out Question) {
				inv.SetData(keys.QuestionDetail(in.ID), out)
			}),
		DeleteQuestion: build(b, KindQuestion, "question.delete",
			delRef(api, "/questions/%d"),
			func(ref Ref, _ struct{}) Target { return Target{QuestionID: ref.ID, CategoryID: ref.OwnerID} },
			nil),

		UpdateProgress: build(b, KindProgress, "progress.update",
			func(ctx context.Context, in ProgressInput) (QuestionProgress, error) {
				var out QuestionProgress
				err := api.Put(ctx, fmt.Sprintf("/progress/questions/%d", in.QuestionID), in, &out)
				return out, err
			},
			func(in ProgressInput, _ QuestionProgress) Target { return Target{QuestionID: in.QuestionID} },
			func(inv mutation.Invalidator, in ProgressInput, out QuestionProgress) {
				inv.SetData(keys.QuestionProgress(in.QuestionID), out)
			}),

		CreateSolution: build(b, KindSolution, "solution.create",
			post[SolutionInput, Solution](api, "/solutions"),
			func(in SolutionInput, out Solution) Target {
				return Target{SolutionID: out.ID, QuestionID: in.QuestionID}
			},
			nil),
		UpdateSolution: build(b, KindSolution, "solution.update",
			put[SolutionInput, Solution](api, "/solutions/%d"),
			func(in Update[SolutionInput], _ Solution) Target {
				return Target{SolutionID: in.ID, QuestionID: in.Body.QuestionID}
			},
			nil),
		DeleteSolution: build(b, KindSolution, "solution.delete",
			delRef(api, "/solutions/%d"),
			func(ref Ref, _ struct{}) Target { return Target{SolutionID: ref.ID, QuestionID: ref.OwnerID} },
			nil),

		CreateTopic: build(b, KindTopic, "topic.create",
			post[TopicInput, Topic](api, "/course/topics"),
			func(_ TopicInput, out Topic) Target { return Target{TopicID: out.ID} },
			nil),
		UpdateTopic: build(b, KindTopic, "topic.update",
			put[TopicInput, Topic](api, "/course/topics/%d"),
			func(in Update[TopicInput], _ Topic) Target { return Target{TopicID: in.ID} },
			nil),
		DeleteTopic: build(b, KindTopic, "topic.delete",
			del(api, "/course/topics/%d"),
			func(id int64, _ struct{}) Target { return Target{TopicID: id} },
			nil),

		CreateDocument: build(b, KindDocument, "document.create",
			post[DocumentInput, Document](api, "/course/documents"),
			func(in DocumentInput, out Document) Target {
				return Target{DocumentID: out.ID, TopicID: in.TopicID}
			},
			nil),
		UpdateDocument: build(b, KindDocument, "document.update",
			put[DocumentInput, Document](api, "/course/documents/%d"),
			// 文档可能被移到其他主题
			func(in Update[DocumentInput], _ Document) Target { return Target{DocumentID: in.ID} },
			nil),
		DeleteDocument: build(b, KindDocument, "document.delete",
			delRef(api, "/course/documents/%d"),
			func(ref Ref, _ struct{}) Target { return Target{DocumentID: ref.ID, TopicID: ref.OwnerID} },
			nil),

		UpdateSettings: build(b, KindSettings, "settings.update",
			func(ctx context.Context, in Settings) (Settings, error) {
				var out Settings
				err := api.Put(ctx, "/settings", in, &out)
				return out, err
			},
			func(Settings, Settings) Target { return Target{} },
			func(inv mutation.Invalidator, _ Settings, out Settings) {
				inv.SetData(keys.SystemSettings(), out)
			}),
	}
}
