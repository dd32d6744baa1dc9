package rawast

import (
	"encoding/json"
	"fmt"
)

// Decode parses the JSON encoding of the node-kind tree spec.md §6
// describes as the external parser's output shape, keyed by a "kind"
// discriminator field equal to the node's type name (e.g. "FunctionDef",
// "BinOp"). This is the one concrete on-disk form UMLC defines for that
// boundary tree — the host parser producing it is out of scope (spec.md
// §1) — chosen because it is the most direct, dependency-free encoding of
// the exact shape §6 already enumerates field-by-field. The envelope's
// "source" field, when present, carries the original host-language text
// solely so diagnostics can quote the offending line; it is never parsed.
func Decode(data []byte) (mod *Module, source string, err error) {
	var raw struct {
		Source string            `json:"source"`
		Body   []json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, "", fmt.Errorf("rawast: %w", err)
	}
	mod = &Module{}
	for _, r := range raw.Body {
		s, err := decodeStmt(r)
		if err != nil {
			return nil, "", err
		}
		mod.Body = append(mod.Body, s)
	}
	return mod, raw.Source, nil
}

type head struct {
	Kind   string `json:"kind"`
	Lineno int    `json:"lineno"`
	Col    int    `json:"col_offset"`
}

func (h head) base() base { return base{Line: h.Lineno, Col: h.Col} }

func decodeExpr(raw json.RawMessage) (Expr, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var h head
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("rawast: %w", err)
	}

	switch h.Kind {
	case "Number":
		var v struct {
			head
			N int64 `json:"n"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return &Number{exprBase: exprBase{v.base()}, N: v.N}, nil

	case "Str":
		var v struct {
			head
			S string `json:"s"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return &Str{exprBase: exprBase{v.base()}, S: v.S}, nil

	case "List":
		var v struct {
			head
			Elts []json.RawMessage `json:"elts"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		elts := make([]Expr, 0, len(v.Elts))
		for _, e := range v.Elts {
			el, err := decodeExpr(e)
			if err != nil {
				return nil, err
			}
			elts = append(elts, el)
		}
		return &List{exprBase: exprBase{v.base()}, Elts: elts}, nil

	case "NameConstant":
		var v struct {
			head
			Value string `json:"value"` // "None" | "True" | "False"
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		kind, err := parseNameConstant(v.Value)
		if err != nil {
			return nil, err
		}
		return &NameConstant{exprBase: exprBase{v.base()}, Kind: kind}, nil

	case "Name":
		var v struct {
			head
			ID  string `json:"id"`
			Ctx string `json:"ctx"` // "Load" | "Store"
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		ctx := Load
		if v.Ctx == "Store" {
			ctx = Store
		}
		return &Name{exprBase: exprBase{v.base()}, ID: v.ID, Ctx: ctx}, nil

	case "BinOp":
		var v struct {
			head
			Left  json.RawMessage `json:"left"`
			Op    string          `json:"op"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		op, err := parseBinOp(v.Op)
		if err != nil {
			return nil, err
		}
		left, err := decodeExpr(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(v.Right)
		if err != nil {
			return nil, err
		}
		return &BinOp{exprBase: exprBase{v.base()}, Left: left, Op: op, Right: right}, nil

	case "UnaryOp":
		var v struct {
			head
			Op      string          `json:"op"`
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		op, err := parseUnaryOp(v.Op)
		if err != nil {
			return nil, err
		}
		operand, err := decodeExpr(v.Operand)
		if err != nil {
			return nil, err
		}
		return &UnaryOp{exprBase: exprBase{v.base()}, Op: op, Operand: operand}, nil

	case "Subscript":
		var v struct {
			head
			Value json.RawMessage `json:"value"`
			Slice json.RawMessage `json:"slice"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		slice, err := decodeExpr(v.Slice)
		if err != nil {
			return nil, err
		}
		return &Subscript{exprBase: exprBase{v.base()}, Value: val, Slice: slice}, nil

	case "Attribute":
		var v struct {
			head
			Value json.RawMessage `json:"value"`
			Attr  string          `json:"attr"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &Attribute{exprBase: exprBase{v.base()}, Value: val, Attr: v.Attr}, nil

	case "Call":
		var v struct {
			head
			Func     json.RawMessage   `json:"func"`
			Args     []json.RawMessage `json:"args"`
			Keywords []struct {
				Arg   string          `json:"arg"`
				Value json.RawMessage `json:"value"`
			} `json:"keywords"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		fn, err := decodeExpr(v.Func)
		if err != nil {
			return nil, err
		}
		args := make([]Expr, 0, len(v.Args))
		for _, a := range v.Args {
			ae, err := decodeExpr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, ae)
		}
		kws := make([]Keyword, 0, len(v.Keywords))
		for _, k := range v.Keywords {
			kv, err := decodeExpr(k.Value)
			if err != nil {
				return nil, err
			}
			kws = append(kws, Keyword{Arg: k.Arg, Value: kv})
		}
		return &Call{exprBase: exprBase{v.base()}, Func: fn, Args: args, Keywords: kws}, nil

	default:
		return nil, fmt.Errorf("rawast: unknown expression kind %q", h.Kind)
	}
}

func decodeStmt(raw json.RawMessage) (Stmt, error) {
	var h head
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("rawast: %w", err)
	}

	switch h.Kind {
	case "For":
		var v struct {
			head
			Target json.RawMessage   `json:"target"`
			Iter   json.RawMessage   `json:"iter"`
			Body   []json.RawMessage `json:"body"`
			OrElse []json.RawMessage `json:"orelse"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		target, err := decodeExpr(v.Target)
		if err != nil {
			return nil, err
		}
		targetName, ok := target.(*Name)
		if !ok {
			return nil, fmt.Errorf("rawast: for loop target must be a Name")
		}
		iter, err := decodeExpr(v.Iter)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmtList(v.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := decodeStmtList(v.OrElse)
		if err != nil {
			return nil, err
		}
		return &For{stmtBase: stmtBase{v.base()}, Target: *targetName, Iter: iter, Body: body, OrElse: orelse}, nil

	case "If":
		var v struct {
			head
			Test json.RawMessage   `json:"test"`
			Body []json.RawMessage `json:"body"`
			Else []json.RawMessage `json:"orelse"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		test, err := decodeExpr(v.Test)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmtList(v.Body)
		if err != nil {
			return nil, err
		}
		elseBody, err := decodeStmtList(v.Else)
		if err != nil {
			return nil, err
		}
		return &If{stmtBase: stmtBase{v.base()}, Test: test, Body: body, Else: elseBody}, nil

	case "Assign":
		var v struct {
			head
			Targets []json.RawMessage `json:"targets"`
			Value   json.RawMessage   `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		targets := make([]Expr, 0, len(v.Targets))
		for _, t := range v.Targets {
			te, err := decodeExpr(t)
			if err != nil {
				return nil, err
			}
			targets = append(targets, te)
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &Assign{stmtBase: stmtBase{v.base()}, Targets: targets, Value: val}, nil

	case "AnnAssign":
		var v struct {
			head
			Target     json.RawMessage `json:"target"`
			Annotation string          `json:"annotation"`
			Value      json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		target, err := decodeExpr(v.Target)
		if err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &AnnAssign{stmtBase: stmtBase{v.base()}, Target: target, Annotation: v.Annotation, Value: val}, nil

	case "Return":
		var v struct {
			head
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &Return{stmtBase: stmtBase{v.base()}, Value: val}, nil

	case "Expr":
		var v struct {
			head
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{stmtBase: stmtBase{v.base()}, Value: val}, nil

	case "FunctionDef":
		var v struct {
			head
			Name    string            `json:"name"`
			Args    jsonArguments     `json:"args"`
			Body    []json.RawMessage `json:"body"`
			Returns string            `json:"returns"`
			DecoratorList []json.RawMessage `json:"decorator_list"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		args, err := v.Args.decode()
		if err != nil {
			return nil, err
		}
		body, err := decodeStmtList(v.Body)
		if err != nil {
			return nil, err
		}
		decorators, err := decodeExprList(v.DecoratorList)
		if err != nil {
			return nil, err
		}
		return &FunctionDef{
			stmtBase:      stmtBase{v.base()},
			Name:          v.Name,
			Args:          args,
			Body:          body,
			Returns:       v.Returns,
			DecoratorList: decorators,
		}, nil

	default:
		return nil, fmt.Errorf("rawast: unknown statement kind %q", h.Kind)
	}
}

func decodeStmtList(raws []json.RawMessage) ([]Stmt, error) {
	out := make([]Stmt, 0, len(raws))
	for _, r := range raws {
		s, err := decodeStmt(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeExprList(raws []json.RawMessage) ([]Expr, error) {
	out := make([]Expr, 0, len(raws))
	for _, r := range raws {
		e, err := decodeExpr(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

type jsonArg struct {
	Arg        string `json:"arg"`
	Annotation string `json:"annotation"`
}

type jsonArguments struct {
	Args       []jsonArg         `json:"args"`
	Vararg     *jsonArg          `json:"vararg"`
	Kwonlyargs []jsonArg         `json:"kwonlyargs"`
	KwDefaults []json.RawMessage `json:"kw_defaults"`
	Kwarg      *jsonArg          `json:"kwarg"`
	Defaults   []json.RawMessage `json:"defaults"`
}

func (j jsonArguments) decode() (Arguments, error) {
	toArg := func(a jsonArg) Arg { return Arg{Name: a.Arg, Annotation: a.Annotation} }

	args := make([]Arg, 0, len(j.Args))
	for _, a := range j.Args {
		args = append(args, toArg(a))
	}
	kwonly := make([]Arg, 0, len(j.Kwonlyargs))
	for _, a := range j.Kwonlyargs {
		kwonly = append(kwonly, toArg(a))
	}
	kwDefaults, err := decodeExprList(j.KwDefaults)
	if err != nil {
		return Arguments{}, err
	}
	defaults, err := decodeExprList(j.Defaults)
	if err != nil {
		return Arguments{}, err
	}

	var vararg, kwarg *Arg
	if j.Vararg != nil {
		a := toArg(*j.Vararg)
		vararg = &a
	}
	if j.Kwarg != nil {
		a := toArg(*j.Kwarg)
		kwarg = &a
	}

	return Arguments{
		Args:       args,
		Vararg:     vararg,
		Kwonlyargs: kwonly,
		KwDefaults: kwDefaults,
		Kwarg:      kwarg,
		Defaults:   defaults,
	}, nil
}

func parseNameConstant(s string) (NameConstantKind, error) {
	switch s {
	case "None":
		return ConstNone, nil
	case "True":
		return ConstTrue, nil
	case "False":
		return ConstFalse, nil
	default:
		return 0, fmt.Errorf("rawast: invalid name constant %q", s)
	}
}

func parseBinOp(s string) (BinOpKind, error) {
	switch s {
	case "Add":
		return Add, nil
	case "Sub":
		return Sub, nil
	case "Mul":
		return Mul, nil
	case "Div":
		return Div, nil
	default:
		return 0, fmt.Errorf("rawast: invalid binary operator %q", s)
	}
}

func parseUnaryOp(s string) (UnaryOpKind, error) {
	switch s {
	case "UAdd":
		return UAdd, nil
	case "USub":
		return USub, nil
	case "Invert":
		return UInvert, nil
	case "Not":
		return UNot, nil
	default:
		return 0, fmt.Errorf("rawast: invalid unary operator %q", s)
	}
}
