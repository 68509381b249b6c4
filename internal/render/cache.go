package render

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

// styleAliases maps config theme names onto glamour's standard styles
var styleAliases = map[string]string{
	"tokyonight": styles.TokyoNightStyle,
}

// rendererPool reuses renderers per option set. A glamour.TermRenderer is
// not safe for concurrent Render calls, so renderers are never shared.
type rendererPool struct {
	mu    sync.Mutex
	pools map[Options]*sync.Pool
}

var globalPool = &rendererPool{
	pools: make(map[Options]*sync.Pool),
}

func (p *rendererPool) pool(opts Options) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pool, ok := p.pools[opts]; ok {
		return pool
	}
	pool := &sync.Pool{
		New: func() any {
			renderer, err := newRenderer(opts)
			if err != nil {
				return nil
			}
			return renderer
		},
	}
	p.pools[opts] = pool
	return pool
}

func (p *rendererPool) get(opts Options) (*glamour.TermRenderer, error) {
	if r, ok := p.pool(opts).Get().(*glamour.TermRenderer); ok && r != nil {
		return r, nil
	}
	// New failed; build directly to surface the error
	return newRenderer(opts)
}

func (p *rendererPool) put(opts Options, r *glamour.TermRenderer) {
	if r != nil {
		p.pool(opts).Put(r)
	}
}

// styleOption resolves opts.Style to a glamour option
func styleOption(style string) (glamour.TermRendererOption, error) {
	if alias, ok := styleAliases[style]; ok {
		style = alias
	}
	if style == styles.AutoStyle {
		return glamour.WithAutoStyle(), nil
	}
	if _, ok := styles.DefaultStyles[style]; ok {
		return glamour.WithStandardStyle(style), nil
	}
	if _, err := os.Stat(style); err != nil {
		return nil, fmt.Errorf("unknown markdown style %q", style)
	}
	return glamour.WithStylePath(style), nil
}

func newRenderer(opts Options) (*glamour.TermRenderer, error) {
	styleOpt, err := styleOption(opts.Style)
	if err != nil {
		return nil, err
	}

	rendererOpts := []glamour.TermRendererOption{
		styleOpt,
		glamour.WithWordWrap(opts.Width),
		glamour.WithTableWrap(opts.TableWrap),
		glamour.WithInlineTableLinks(opts.InlineTableLinks),
	}
	if opts.EnableEmoji {
		rendererOpts = append(rendererOpts, glamour.WithEmoji())
	}
	if opts.PreserveNewLines {
		rendererOpts = append(rendererOpts, glamour.WithPreservedNewLines())
	}

	return glamour.NewTermRenderer(rendererOpts...)
}

// ClearCache drops all pooled renderers
func ClearCache() {
	globalPool.mu.Lock()
	globalPool.pools = make(map[Options]*sync.Pool)
	globalPool.mu.Unlock()
}

// CacheSize returns the number of distinct option sets pooled
func CacheSize() int {
	globalPool.mu.Lock()
	defer globalPool.mu.Unlock()
	return len(globalPool.pools)
}
