package generation

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"slide-content-api/internal/domain/entity"
	apperrors "slide-content-api/pkg/errors"
)

// SectionRender HTML 渲染所需的单分区输入
type SectionRender struct {
	ID   string
	Role string
	Text string
}

// StylingMode 输出风格：内联样式值或外部类名引用
type StylingMode string

const (
	StylingInline  StylingMode = "inline_styles"
	StylingClasses StylingMode = "css_classes"
)

// Valid 校验模式取值；空串按 css_classes 处理
func (m StylingMode) Valid() bool {
	return m == "" || m == StylingInline || m == StylingClasses
}

// typographyTier 固定四档排版。两种输出模式共用同一张表：
// class 模式引用档位类名，inline 模式写出同一档位的数值。
type typographyTier struct {
	Class      string
	FontSizePx int
	LineHeight float64
}

var typographyTiers = [4]typographyTier{
	{Class: "text-tier-1", FontSizePx: 40, LineHeight: 1.2},
	{Class: "text-tier-2", FontSizePx: 28, LineHeight: 1.3},
	{Class: "text-tier-3", FontSizePx: 24, LineHeight: 1.4},
	{Class: "text-tier-4", FontSizePx: 16, LineHeight: 1.3},
}

// roleTier 角色到档位的映射；未知角色落到正文档
func roleTier(role string) typographyTier {
	switch role {
	case "title", "metric":
		return typographyTiers[0]
	case "subtitle":
		return typographyTiers[1]
	case "label", "caption", "icon":
		return typographyTiers[3]
	default:
		return typographyTiers[2]
	}
}

// HTMLFormatter 将生成内容渲染为 HTML 片段。
// 渲染只依赖布局、分区内容与输出模式，多步与回退两条路径共用同一实现，
// 同样的输入必然产出同样的标记。
type HTMLFormatter struct{}

func NewHTMLFormatter() *HTMLFormatter {
	return &HTMLFormatter{}
}

// RenderSlide 渲染整页幻灯片：布局容器 + 每分区一个块。
// css_classes 模式给分区挂角色类与档位类；inline_styles 模式把同一档位的
// 字号/行高直接写进 style 属性。文本经 HTML 转义，换行展开为段落。
func (f *HTMLFormatter) RenderSlide(layout entity.LayoutStructure, sections []SectionRender, mode StylingMode) (string, error) {
	if !layout.Valid() {
		return "", apperrors.Newf(apperrors.CodeValidationFailed, "unknown layout %q", layout)
	}
	if !mode.Valid() {
		return "", apperrors.Newf(apperrors.CodeValidationFailed, "unknown styling mode %q", mode)
	}
	if len(sections) == 0 {
		return "", apperrors.New(apperrors.CodeValidationFailed, "no sections to render")
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="slide slide--%s">`, layout)
	b.WriteByte('\n')
	for _, s := range sections {
		role := strings.TrimSpace(s.Role)
		if role == "" {
			role = "body"
		}
		tier := roleTier(role)
		if mode == StylingInline {
			fmt.Fprintf(&b, `  <div class="slide-section" data-section-id="%s" data-role="%s" style="font-size:%dpx;line-height:%.1f">`,
				html.EscapeString(s.ID), html.EscapeString(role), tier.FontSizePx, tier.LineHeight)
		} else {
			fmt.Fprintf(&b, `  <div class="slide-section slide-section--%s %s" data-section-id="%s">`,
				html.EscapeString(role), tier.Class, html.EscapeString(s.ID))
		}
		b.WriteByte('\n')
		writeParagraphs(&b, s.Text)
		b.WriteString("  </div>\n")
	}
	b.WriteString("</div>")
	return b.String(), nil
}

// writeParagraphs 按换行切段；空行不产出标记
func writeParagraphs(b *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fmt.Fprintf(b, "    <p>%s</p>\n", html.EscapeString(line))
	}
}

var templateSlotRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderComponentInstance 将插槽文本填入组件模板。
// 插槽集合必须与模板占位符一致，多出或缺失都视为插槽不匹配。
func (f *HTMLFormatter) RenderComponentInstance(def *entity.ComponentDefinition, variantID string, slots map[string]string) (string, error) {
	if def == nil {
		return "", apperrors.New(apperrors.CodeValidationFailed, "component definition is nil")
	}

	var variant *entity.ComponentVariant
	if variantID != "" {
		v, ok := def.Variants[variantID]
		if !ok {
			return "", apperrors.Newf(apperrors.CodeValidationFailed,
				"component %s has no variant %q", def.ID, variantID)
		}
		variant = &v
	}

	for name := range def.Slots {
		if _, ok := slots[name]; !ok {
			return "", apperrors.Newf(apperrors.CodeSlotMismatch,
				"component %s: missing content for slot %q", def.ID, name)
		}
	}
	for name := range slots {
		if _, ok := def.Slots[name]; !ok {
			return "", apperrors.Newf(apperrors.CodeSlotMismatch,
				"component %s: content for undeclared slot %q", def.ID, name)
		}
	}

	rendered := templateSlotRe.ReplaceAllStringFunc(def.Template, func(match string) string {
		name := templateSlotRe.FindStringSubmatch(match)[1]
		value := html.EscapeString(slots[name])
		if variant != nil {
			if cls, ok := variant.Classes[string(def.Slots[name].Role)]; ok && cls != "" {
				return fmt.Sprintf(`<span class="%s">%s</span>`, html.EscapeString(cls), value)
			}
		}
		return value
	})
	return rendered, nil
}

// RenderAssembly 将已填充的实例按几何位置包裹进绝对定位的容器
func (f *HTMLFormatter) RenderAssembly(def *entity.ComponentDefinition, arrangement entity.Arrangement, instances []entity.ComponentInstance) (string, error) {
	if def == nil {
		return "", apperrors.New(apperrors.CodeValidationFailed, "component definition is nil")
	}
	if len(instances) == 0 {
		return "", apperrors.New(apperrors.CodeValidationFailed, "no instances to render")
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="component-grid component-grid--%s" data-component-id="%s" data-arrangement="%s">`,
		html.EscapeString(def.ID), html.EscapeString(def.ID), arrangement)
	b.WriteByte('\n')
	for _, inst := range instances {
		g := inst.Geometry
		fmt.Fprintf(&b,
			"  <div class=\"component-cell\" style=\"position:absolute;left:%dpx;top:%dpx;width:%dpx;height:%dpx\">\n    %s\n  </div>\n",
			g.X, g.Y, g.Width, g.Height, inst.HTML)
	}
	b.WriteString("</div>")
	return b.String(), nil
}
