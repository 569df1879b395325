// Package codegen lowers an optimized graph to standalone C++ for an
// embedded target: weight arrays with initializer data, activation
// buffers, one function per layer calling the ember runtime kernels, and
// the exported model API.
//
// The generator only reads the graph. Shapes come from boundary
// declarations and output_shape hints; dimensions that cannot be
// resolved are emitted as 1, matching the runtime kernels' treatment of
// degenerate extents.
package codegen

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/target"
	"github.com/born-ml/ember/internal/tensor"
)

// Version is reported by the generated <model>_get_version function.
const Version = "1.0.0"

// Output holds the generated translation unit and its public header.
type Output struct {
	Source []byte
	Header []byte
}

// Generator emits C++ for one target configuration.
type Generator struct {
	target target.Config
}

// New creates a generator for the given target.
func New(cfg target.Config) *Generator {
	return &Generator{target: cfg}
}

var headerTmpl = template.Must(template.New("header").Parse(`#ifndef {{.Guard}}
#define {{.Guard}}

#ifdef __cplusplus
extern "C" {
#endif

// Model inference
int {{.Model}}_inference(const float* input, float* output);

// Lifecycle
int {{.Model}}_init(void);
void {{.Model}}_cleanup(void);

// Metadata
const char* {{.Model}}_get_version(void);
int {{.Model}}_get_input_size(void);
int {{.Model}}_get_output_size(void);

#ifdef __cplusplus
}
#endif

#endif // {{.Guard}}
`))

var apiTmpl = template.Must(template.New("api").Parse(`// ---- Model API ----

int {{.Model}}_inference(const float* input, float* output) {
{{.Body}}    return 0;
}

int {{.Model}}_init(void) {
    // Buffers are static; nothing to allocate.
    return 0;
}

void {{.Model}}_cleanup(void) {
}

const char* {{.Model}}_get_version(void) {
    return "{{.Version}}";
}

int {{.Model}}_get_input_size(void) {
    return {{.InputSize}};
}

int {{.Model}}_get_output_size(void) {
    return {{.OutputSize}};
}
`))

// Generate renders the source and header for g. The model name becomes
// the C identifier prefix; when empty the graph name is used.
func (gen *Generator) Generate(g *graph.Graph, modelName string) (*Output, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if modelName == "" {
		modelName = g.Name
	}
	if modelName == "" {
		modelName = "model"
	}
	model := sanitize(modelName)

	e := &emitter{
		g:      g,
		cfg:    gen.target,
		model:  model,
		shapes: shapeTable(g),
	}

	weights, err := e.weights()
	if err != nil {
		return nil, fmt.Errorf("emit weights: %w", err)
	}

	sections := []string{
		e.banner(),
		e.includes(),
		e.defines(),
		weights,
	}
	if q := e.quantParams(); q != "" {
		sections = append(sections, q)
	}
	if b := e.buffers(); b != "" {
		sections = append(sections, b)
	}
	layers, calls := e.layers()
	sections = append(sections, layers, e.api(calls))

	src := strings.Join(sections, "\n\n")
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}

	hdr, err := e.header()
	if err != nil {
		return nil, err
	}
	return &Output{Source: []byte(src), Header: hdr}, nil
}

func (e *emitter) api(calls []string) string {
	var body strings.Builder
	for _, c := range calls {
		body.WriteString("    ")
		body.WriteString(c)
		body.WriteString("\n")
	}

	var b strings.Builder
	err := apiTmpl.Execute(&b, struct {
		Model      string
		Body       string
		Version    string
		InputSize  int64
		OutputSize int64
	}{
		Model:      e.model,
		Body:       body.String(),
		Version:    Version,
		InputSize:  e.boundarySize(e.g.Inputs),
		OutputSize: e.boundarySize(e.g.Outputs),
	})
	if err != nil {
		// The template is static; execution cannot fail on a builder.
		panic(err)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *emitter) header() ([]byte, error) {
	guard := strings.ToUpper(e.model) + "_" + strings.ToUpper(sanitize(e.cfg.Name)) + "_H"
	var b strings.Builder
	err := headerTmpl.Execute(&b, struct {
		Guard string
		Model string
	}{Guard: guard, Model: e.model})
	if err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func (e *emitter) boundarySize(vals []graph.ValueInfo) int64 {
	if len(vals) == 0 || vals[0].Shape == nil {
		return 0
	}
	return elemCount(vals[0].Shape)
}

// shapeTable resolves tensor names to shapes from boundary declarations,
// weights, and output_shape hints.
func shapeTable(g *graph.Graph) map[string]tensor.Shape {
	shapes := make(map[string]tensor.Shape)
	for _, in := range g.Inputs {
		if in.Shape != nil {
			shapes[in.Name] = in.Shape
		}
	}
	for _, out := range g.Outputs {
		if out.Shape != nil {
			shapes[out.Name] = out.Shape
		}
	}
	for name, w := range g.Weights {
		if _, ok := shapes[name]; !ok {
			shapes[name] = w.Shape()
		}
	}
	for _, n := range g.Nodes {
		hint := n.OutputShape()
		if hint == nil {
			continue
		}
		for _, out := range n.Outputs {
			if _, ok := shapes[out]; !ok {
				shapes[out] = hint
			}
		}
	}
	return shapes
}
