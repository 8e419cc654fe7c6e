package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/model"
)

// Result 工具执行结果
type Result struct {
	OK      bool           `json:"ok"`
	Message string         `json:"message"`
	Link    string         `json:"link,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Text 拼接给用户看的消息与链接
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	if r.Link == "" || strings.Contains(r.Message, r.Link) {
		return r.Message
	}
	return fmt.Sprintf("%s\nLink: %s", r.Message, r.Link)
}

// Tool 业务工具，参数由模型给出，操作者由系统注入
type Tool interface {
	Info(ctx context.Context) (*schema.ToolInfo, error)
	Invoke(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error)
}

// 由系统注入、不接受模型传入的身份参数
var identityArgs = []string{"user", "actor", "user_id"}

// Registry 工具注册表，构造后只读
type Registry struct {
	tools map[string]Tool
	infos map[string]*schema.ToolInfo
	names []string
}

// NewRegistry 创建注册表，重名工具直接报错
func NewRegistry(ctx context.Context, list ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool, len(list)),
		infos: make(map[string]*schema.ToolInfo, len(list)),
	}
	for _, t := range list {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		if info.Name == "" {
			return nil, fmt.Errorf("tool without name")
		}
		if _, ok := r.tools[info.Name]; ok {
			return nil, fmt.Errorf("duplicate tool %q", info.Name)
		}
		r.tools[info.Name] = t
		r.infos[info.Name] = info
		r.names = append(r.names, info.Name)
	}
	return r, nil
}

// Get 按名称查找工具
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Has 判断工具是否存在
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names 按注册顺序返回工具名
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Infos 返回全部工具描述，用于绑定到模型
func (r *Registry) Infos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.infos[n])
	}
	return out
}

// Catalogue 工具名与一句话描述，路由分类时使用
func (r *Registry) Catalogue() string {
	var sb strings.Builder
	for _, n := range r.names {
		desc, _, _ := strings.Cut(r.infos[n].Desc, "\n")
		fmt.Fprintf(&sb, "- %s: %s\n", n, strings.TrimSpace(desc))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Schemas 工具描述加完整参数定义，推理节点在工具模式下使用
func (r *Registry) Schemas() string {
	var sb strings.Builder
	for _, n := range r.names {
		info := r.infos[n]
		fmt.Fprintf(&sb, "- %s: %s\n", n, strings.TrimSpace(info.Desc))
		if args := argsSchema(info); args != "" {
			fmt.Fprintf(&sb, "  args: %s\n", args)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func argsSchema(info *schema.ToolInfo) string {
	if info.ParamsOneOf == nil {
		return ""
	}
	s, err := info.ParamsOneOf.ToOpenAPIV3()
	if err != nil || s == nil || len(s.Properties) == 0 {
		return ""
	}

	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	required := map[string]bool{}
	for _, k := range s.Required {
		required[k] = true
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		typ := ""
		if ref := s.Properties[k]; ref != nil && ref.Value != nil {
			typ = ref.Value.Type
		}
		if required[k] {
			parts = append(parts, fmt.Sprintf("%s: %s (required)", k, typ))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", k, typ))
		}
	}
	return strings.Join(parts, ", ")
}

// Invoke 执行工具：剔除身份参数、注入操作者
func (r *Registry) Invoke(ctx context.Context, actor *model.Actor, name string, args map[string]any) (*Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return t.Invoke(ctx, actor, StripIdentity(args))
}

// StripIdentity 返回去掉身份参数的副本
func StripIdentity(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, k := range identityArgs {
		delete(out, k)
	}
	return out
}

// ParseArgs 解析模型给出的 JSON 参数
func ParseArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("parse tool arguments: %w", err)
	}
	return args, nil
}
