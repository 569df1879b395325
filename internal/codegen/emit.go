package codegen

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/target"
	"github.com/born-ml/ember/internal/tensor"
)

type emitter struct {
	g      *graph.Graph
	cfg    target.Config
	model  string
	shapes map[string]tensor.Shape
}

func (e *emitter) banner() string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Generated by the ember compiler v%s. Do not edit.\n", Version)
	fmt.Fprintf(&b, "// Model: %s\n", e.model)
	fmt.Fprintf(&b, "// Target: %s (%s)", e.cfg.Name, e.cfg.InstructionSet)
	return b.String()
}

// includes quotes project-local headers and brackets system ones.
func (e *emitter) includes() string {
	var b strings.Builder
	b.WriteString("#include <stdint.h>\n")
	for _, inc := range e.cfg.Includes {
		if strings.HasSuffix(inc, ".h") {
			fmt.Fprintf(&b, "#include \"%s\"\n", inc)
		} else {
			fmt.Fprintf(&b, "#include <%s>\n", inc)
		}
	}
	b.WriteString("#include \"ember_runtime.h\"")
	return b.String()
}

func (e *emitter) defines() string {
	var b strings.Builder
	for _, d := range e.cfg.Defines {
		fmt.Fprintf(&b, "#define %s\n", d)
	}
	fmt.Fprintf(&b, "#define STACK_SIZE %d\n", e.cfg.StackSize)
	fmt.Fprintf(&b, "#define HEAP_SIZE %d\n", e.cfg.HeapSize)
	fmt.Fprintf(&b, "#define ALIGNMENT %d", e.cfg.Alignment)
	return b.String()
}

// weights emits one aligned const array per weight tensor, plus payload
// arrays for constant nodes produced by folding.
func (e *emitter) weights() (string, error) {
	var b strings.Builder
	b.WriteString("// ---- Weights ----\n")

	names := make([]string, 0, len(e.g.Weights))
	for name := range e.g.Weights {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w := e.g.Weights[name]
		ct, err := cType(w.DType())
		if err != nil {
			return "", fmt.Errorf("weight %q: %w", name, err)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "alignas(%d) static const %s w_%s[%d] = {\n", e.cfg.Alignment, ct, sanitize(name), w.NumElements())
		writeValues(&b, w)
		b.WriteString("\n};\n")
	}

	for _, n := range e.g.Nodes {
		if n.OpType != "constant" {
			continue
		}
		val := n.AttrTensor("value")
		if val == nil {
			continue
		}
		ct, err := cType(val.DType())
		if err != nil {
			return "", fmt.Errorf("constant %q: %w", n.Name, err)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "alignas(%d) static const %s c_%s[%d] = {\n", e.cfg.Alignment, ct, sanitize(n.Name), val.NumElements())
		writeValues(&b, val)
		b.WriteString("\n};\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// quantParams emits per-channel scale and zero-point tables for nodes
// whose weights were quantized, and the activation ranges recorded by
// calibration. Returns "" when the graph carries no quantization state.
func (e *emitter) quantParams() string {
	var b strings.Builder
	for _, n := range e.g.Nodes {
		scales := n.AttrFloats("weight_scales")
		if len(scales) == 0 {
			continue
		}
		ln := sanitize(n.Name)
		fmt.Fprintf(&b, "static const float q_%s_weight_scales[%d] = {\n", ln, len(scales))
		writeFloatList(&b, scales)
		b.WriteString("\n};\n")
		if zps := n.AttrInts("weight_zero_points"); len(zps) > 0 {
			fmt.Fprintf(&b, "static const int32_t q_%s_weight_zero_points[%d] = {\n", ln, len(zps))
			writeIntList(&b, zps)
			b.WriteString("\n};\n")
		}
		if n.AttrBool("bias_quantized", false) {
			fmt.Fprintf(&b, "static const float q_%s_bias_scale = %s;\n", ln, cFloat(n.AttrFloat("bias_scale", 1.0)))
			fmt.Fprintf(&b, "static const int32_t q_%s_bias_zero_point = %s;\n", ln, cInt32(n.AttrInt("bias_zero_point", 0)))
		}
	}
	for _, n := range e.g.Nodes {
		qp, ok := e.g.Metadata.ActivationQuant[n.Name]
		if !ok {
			continue
		}
		ln := sanitize(n.Name)
		fmt.Fprintf(&b, "static const float act_scale_%s = %s;\n", ln, cFloat(qp.Scale))
		fmt.Fprintf(&b, "static const int32_t act_zp_%s = %s;\n", ln, cInt32(int64(qp.ZeroPoint)))
	}
	if b.Len() == 0 {
		return ""
	}
	return "// ---- Quantization parameters ----\n\n" + strings.TrimRight(b.String(), "\n")
}

// buffers sizes one static float array per memory pool (the largest
// member tensor wins) and one per unpooled intermediate tensor.
func (e *emitter) buffers() string {
	pools := make(map[int]int64)
	dedicated := make(map[string]int64)

	track := func(name string) {
		buf := e.bufFor(name)
		switch {
		case buf == "input" || buf == "output" || strings.HasPrefix(buf, "w_"):
		case strings.HasPrefix(buf, "pool_"):
			id := e.g.Metadata.MemoryPools[name]
			if n := e.elemsOf(name); n > pools[id] {
				pools[id] = n
			}
		default:
			if n := e.elemsOf(name); n > dedicated[buf] {
				dedicated[buf] = n
			}
		}
	}
	for _, n := range e.g.Nodes {
		for _, in := range n.Inputs {
			track(in)
		}
		for _, out := range n.Outputs {
			track(out)
		}
	}
	if len(pools) == 0 && len(dedicated) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("// ---- Activation buffers ----\n\n")
	ids := make([]int, 0, len(pools))
	for id := range pools {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Fprintf(&b, "alignas(%d) static float pool_%d[%d];\n", e.cfg.Alignment, id, pools[id])
	}
	bufs := make([]string, 0, len(dedicated))
	for name := range dedicated {
		bufs = append(bufs, name)
	}
	sort.Strings(bufs)
	for _, name := range bufs {
		fmt.Fprintf(&b, "alignas(%d) static float %s[%d];\n", e.cfg.Alignment, name, dedicated[name])
	}
	return strings.TrimRight(b.String(), "\n")
}

// bufFor maps a tensor name to the C expression backing it at runtime.
func (e *emitter) bufFor(name string) string {
	if len(e.g.Inputs) > 0 && name == e.g.Inputs[0].Name {
		return "input"
	}
	if len(e.g.Outputs) > 0 && name == e.g.Outputs[0].Name {
		return "output"
	}
	if e.g.IsWeight(name) {
		return "w_" + sanitize(name)
	}
	if id, ok := e.g.Metadata.MemoryPools[name]; ok {
		return fmt.Sprintf("pool_%d", id)
	}
	return "buf_" + sanitize(name)
}

// layers renders one static function per node and the matching call for
// the inference sequence.
func (e *emitter) layers() (string, []string) {
	var defs strings.Builder
	defs.WriteString("// ---- Layers ----")

	calls := make([]string, 0, len(e.g.Nodes))
	for i, n := range e.g.Nodes {
		if len(n.Outputs) == 0 || (len(n.Inputs) == 0 && n.OpType != "constant") {
			continue
		}
		fn := fmt.Sprintf("layer_%d_%s", i, sanitize(n.OpType))
		params, args, body := e.layerParts(n)

		defs.WriteString("\n\n")
		fmt.Fprintf(&defs, "// %s: %s\n", n.Name, n.OpType)
		fmt.Fprintf(&defs, "static void %s(%s) {\n", fn, strings.Join(params, ", "))
		for _, line := range body {
			defs.WriteString("    ")
			defs.WriteString(line)
			defs.WriteString("\n")
		}
		defs.WriteString("}")

		calls = append(calls, fmt.Sprintf("%s(%s);", fn, strings.Join(args, ", ")))
	}
	return defs.String(), calls
}

// layerParts decides the signature, the call-site arguments, and the
// body of one layer function.
func (e *emitter) layerParts(n *graph.Node) (params, args, body []string) {
	out := n.Outputs[0]
	outElems := e.elemsOf(out)

	inOut := func() {
		params = []string{"const float* input", "float* output"}
		args = []string{e.bufFor(n.Inputs[0]), e.bufFor(out)}
	}

	switch n.OpType {
	case "conv2d", "conv1d":
		inOut()
		body = e.convBody(n)
	case "dense", "linear":
		inOut()
		body = e.denseBody(n)
	case "matmul":
		params = []string{"const float* a", "const float* b", "float* output"}
		args = []string{e.bufFor(n.Inputs[0]), e.bufFor(n.Inputs[1]), e.bufFor(out)}
		m := e.dimOf(out, -2)
		nn := e.dimOf(out, -1)
		k := e.dimOf(n.Inputs[0], -1)
		body = []string{fmt.Sprintf("ember_matmul(a, b, output, %d, %d, %d);", m, nn, k)}
	case "relu", "sigmoid", "tanh", "softmax":
		inOut()
		body = []string{fmt.Sprintf("ember_%s(input, output, %d);", n.OpType, outElems)}
	case "leaky_relu":
		inOut()
		body = []string{fmt.Sprintf("ember_leaky_relu(input, output, %d, %s);", outElems, cFloat(n.AttrFloat("alpha", 0.01)))}
	case "flatten", "reshape", "transpose", "dropout":
		// Layout-only at inference time on contiguous buffers.
		inOut()
		body = []string{fmt.Sprintf("ember_copy(input, output, %d);", outElems)}
	case "max_pool2d", "avg_pool2d":
		inOut()
		kernel := firstInt(n.AttrInts("kernel_size"), 2)
		stride := firstInt(n.AttrInts("strides"), kernel)
		c := e.dimOf(n.Inputs[0], 1)
		h := e.dimOf(n.Inputs[0], 2)
		w := e.dimOf(n.Inputs[0], 3)
		body = []string{fmt.Sprintf("ember_%s(input, output, %d, %d, %d, %d, %d);", n.OpType, c, h, w, kernel, stride)}
	case "global_avg_pool2d":
		inOut()
		c := e.dimOf(n.Inputs[0], 1)
		h := e.dimOf(n.Inputs[0], 2)
		w := e.dimOf(n.Inputs[0], 3)
		body = []string{fmt.Sprintf("ember_global_avg_pool2d(input, output, %d, %d, %d);", c, h, w)}
	case "batch_norm":
		inOut()
		stats := []string{"nullptr", "nullptr", "nullptr", "nullptr"}
		for i := 1; i < len(n.Inputs) && i <= 4; i++ {
			stats[i-1] = e.bufFor(n.Inputs[i])
		}
		body = []string{fmt.Sprintf("ember_batch_norm(input, output, %d, %s, %s);",
			outElems, strings.Join(stats, ", "), cFloat(n.AttrFloat("epsilon", 1e-5)))}
	case "layer_norm":
		inOut()
		gamma, beta := "nullptr", "nullptr"
		if len(n.Inputs) > 1 {
			gamma = e.bufFor(n.Inputs[1])
		}
		if len(n.Inputs) > 2 {
			beta = e.bufFor(n.Inputs[2])
		}
		body = []string{fmt.Sprintf("ember_layer_norm(input, output, %d, %s, %s, %s);",
			outElems, gamma, beta, cFloat(n.AttrFloat("epsilon", 1e-5)))}
	case "add", "sub", "mul", "div":
		params, args = e.variadicSig(n)
		body = append(body, fmt.Sprintf("ember_%s(in0, in1, output, %d);", n.OpType, outElems))
		for i := 2; i < len(n.Inputs); i++ {
			body = append(body, fmt.Sprintf("ember_%s(output, in%d, output, %d);", n.OpType, i, outElems))
		}
	case "concat":
		params, args = e.variadicSig(n)
		var off int64
		for i, in := range n.Inputs {
			elems := e.elemsOf(in)
			dst := "output"
			if off > 0 {
				dst = fmt.Sprintf("output + %d", off)
			}
			body = append(body, fmt.Sprintf("ember_copy(in%d, %s, %d);", i, dst, elems))
			off += elems
		}
	case "constant":
		params = []string{"float* output"}
		args = []string{e.bufFor(out)}
		if val := n.AttrTensor("value"); val != nil {
			body = []string{fmt.Sprintf("ember_copy(c_%s, output, %d);", sanitize(n.Name), val.NumElements())}
		} else {
			body = []string{fmt.Sprintf("ember_fill(output, %d, 0.0f);", outElems)}
		}
	default:
		// No dedicated kernel; pass the data through unchanged.
		inOut()
		body = []string{fmt.Sprintf("ember_copy(input, output, %d);", outElems)}
	}

	body = append(body, e.fusedTail(n, outElems)...)
	return params, args, body
}

// fusedTail applies attributes stamped by layer fusion: a folded batch
// norm, then the absorbed activation.
func (e *emitter) fusedTail(n *graph.Node, outElems int64) []string {
	var tail []string
	if n.AttrBool("batch_norm_folded", false) {
		tail = append(tail, fmt.Sprintf("ember_batch_norm_fold(output, %d, %s, %s, %s, %s);",
			outElems,
			cFloat(n.AttrFloat("bn_scale", 1.0)),
			cFloat(n.AttrFloat("bn_bias", 0.0)),
			cFloat(n.AttrFloat("bn_mean", 0.0)),
			cFloat(n.AttrFloat("bn_var", 1.0))))
	}
	if act := n.AttrString("activation", ""); act != "" {
		tail = append(tail, fmt.Sprintf("ember_%s(output, output, %d);", act, outElems))
	}
	return tail
}

func (e *emitter) convBody(n *graph.Node) []string {
	inC := e.dimOf(n.Inputs[0], 1)
	outC := int64(1)
	if len(n.Inputs) > 1 {
		if w, ok := e.g.Weights[n.Inputs[1]]; ok && len(w.Shape()) > 0 {
			outC = int64(w.Shape()[0])
		} else {
			outC = e.dimOf(n.Outputs[0], 1)
		}
	}
	kernel := firstInt(n.AttrInts("kernel_size"), 3)
	stride := firstInt(n.AttrInts("strides"), 1)
	weights, bias := e.weightArgs(n)

	if quantized(n) {
		ln := sanitize(n.Name)
		return []string{fmt.Sprintf("ember_%s_int8(input, output, %s, q_%s_weight_scales, q_%s_weight_zero_points, %s, %s, %d, %d, %d, %d);",
			n.OpType, weights, ln, ln, bias, e.biasScale(n), inC, outC, kernel, stride)}
	}
	return []string{fmt.Sprintf("ember_%s(input, output, %s, %s, %d, %d, %d, %d);",
		n.OpType, weights, bias, inC, outC, kernel, stride)}
}

func (e *emitter) denseBody(n *graph.Node) []string {
	inF := e.dimOf(n.Inputs[0], -1)
	outF := e.dimOf(n.Outputs[0], -1)
	if len(n.Inputs) > 1 {
		if w, ok := e.g.Weights[n.Inputs[1]]; ok && len(w.Shape()) >= 2 {
			outF = int64(w.Shape()[0])
			inF = int64(w.Shape()[1])
		}
	}
	weights, bias := e.weightArgs(n)

	if quantized(n) {
		ln := sanitize(n.Name)
		return []string{fmt.Sprintf("ember_dense_int8(input, output, %s, q_%s_weight_scales, q_%s_weight_zero_points, %s, %s, %d, %d);",
			weights, ln, ln, bias, e.biasScale(n), inF, outF)}
	}
	return []string{fmt.Sprintf("ember_dense(input, output, %s, %s, %d, %d);",
		weights, bias, inF, outF)}
}

func (e *emitter) weightArgs(n *graph.Node) (weights, bias string) {
	weights, bias = "nullptr", "nullptr"
	if len(n.Inputs) > 1 {
		weights = e.bufFor(n.Inputs[1])
	}
	if len(n.Inputs) > 2 {
		bias = e.bufFor(n.Inputs[2])
	}
	return weights, bias
}

func (e *emitter) biasScale(n *graph.Node) string {
	if n.AttrBool("bias_quantized", false) {
		return fmt.Sprintf("q_%s_bias_scale", sanitize(n.Name))
	}
	return "1.0f"
}

func quantized(n *graph.Node) bool {
	return n.AttrBool("weight_quantized", false) && len(n.AttrFloats("weight_scales")) > 0
}

func (e *emitter) variadicSig(n *graph.Node) (params, args []string) {
	for i, in := range n.Inputs {
		params = append(params, fmt.Sprintf("const float* in%d", i))
		args = append(args, e.bufFor(in))
	}
	params = append(params, "float* output")
	args = append(args, e.bufFor(n.Outputs[0]))
	return params, args
}

func (e *emitter) elemsOf(name string) int64 {
	s, ok := e.shapes[name]
	if !ok {
		return 1
	}
	return elemCount(s)
}

// dimOf resolves one dimension of a named tensor; negative indexes count
// from the end. Unknown shapes and non-positive extents resolve to 1.
func (e *emitter) dimOf(name string, idx int) int64 {
	s, ok := e.shapes[name]
	if !ok {
		return 1
	}
	if idx < 0 {
		idx += len(s)
	}
	if idx < 0 || idx >= len(s) || s[idx] <= 0 {
		return 1
	}
	return int64(s[idx])
}

func elemCount(s tensor.Shape) int64 {
	n := int64(1)
	for _, d := range s {
		if d > 0 {
			n *= int64(d)
		}
	}
	return n
}

func firstInt(vals []int64, def int64) int64 {
	if len(vals) == 0 || vals[0] <= 0 {
		return def
	}
	return vals[0]
}

var identPattern = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitize rewrites a tensor or model name into a legal C identifier.
func sanitize(name string) string {
	s := identPattern.ReplaceAllString(name, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

func cType(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "float", nil
	case tensor.Int8:
		return "int8_t", nil
	case tensor.UInt8:
		return "uint8_t", nil
	case tensor.Int16:
		return "int16_t", nil
	case tensor.Int32:
		return "int32_t", nil
	default:
		return "", fmt.Errorf("no C type for dtype %s", dt)
	}
}

func cFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s + "f"
}

// cInt32 guards the INT32_MIN literal, which C parses as a unary minus
// applied to an out-of-range constant.
func cInt32(v int64) string {
	if v == math.MinInt32 {
		return "INT32_MIN"
	}
	return strconv.FormatInt(v, 10)
}

func writeValues(b *strings.Builder, t *tensor.Tensor) {
	vals := make([]string, 0, t.NumElements())
	switch t.DType() {
	case tensor.Float32:
		for _, v := range t.AsFloat32() {
			vals = append(vals, cFloat(float64(v)))
		}
	case tensor.Int8:
		for _, v := range t.AsInt8() {
			vals = append(vals, strconv.FormatInt(int64(v), 10))
		}
	case tensor.UInt8:
		for _, v := range t.AsUint8() {
			vals = append(vals, strconv.FormatUint(uint64(v), 10))
		}
	case tensor.Int16:
		for _, v := range t.AsInt16() {
			vals = append(vals, strconv.FormatInt(int64(v), 10))
		}
	case tensor.Int32:
		for _, v := range t.AsInt32() {
			vals = append(vals, cInt32(int64(v)))
		}
	}
	writeWrapped(b, vals)
}

func writeFloatList(b *strings.Builder, vals []float64) {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = cFloat(v)
	}
	writeWrapped(b, out)
}

func writeIntList(b *strings.Builder, vals []int64) {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = cInt32(v)
	}
	writeWrapped(b, out)
}

// writeWrapped lays out initializer values eight per line.
func writeWrapped(b *strings.Builder, vals []string) {
	for i, v := range vals {
		if i%8 == 0 {
			if i > 0 {
				b.WriteString(",\n")
			}
			b.WriteString("    ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(v)
	}
}
