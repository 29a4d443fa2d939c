// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hosttype

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strconv"
)

// HostLayoutName is the spelling of the marker type that pins a struct's
// field order and packing to the platform C layout.
const HostLayoutName = "structs.HostLayout"

// Parse parses a Go type expression such as "[2]uint32" or "Light".
func Parse(expr string) (Type, error) {
	e, err := parser.ParseExpr(expr)
	if err != nil {
		return Type{}, &ParseError{Expr: expr, Message: err.Error()}
	}
	return FromExpr(e)
}

// FromExpr converts a parsed Go type expression.
//
// Identifiers that are not predeclared scalars are treated as struct
// references. Qualified identifiers, pointers, maps, channels and function
// types become KindOther so that the type mapper can reject them by name.
func FromExpr(e ast.Expr) (Type, error) {
	switch x := e.(type) {
	case *ast.Ident:
		if k, ok := scalarKinds[x.Name]; ok {
			return Scalar(k), nil
		}
		return Named(x.Name), nil

	case *ast.ParenExpr:
		return FromExpr(x.X)

	case *ast.ArrayType:
		elem, err := FromExpr(x.Elt)
		if err != nil {
			return Type{}, err
		}
		if x.Len == nil {
			return SliceOf(elem), nil
		}
		n, err := arrayLen(x.Len)
		if err != nil {
			return Type{}, err
		}
		return ArrayOf(n, elem), nil

	case *ast.SelectorExpr:
		if pkg, ok := x.X.(*ast.Ident); ok {
			return Type{Kind: KindOther, Name: pkg.Name + "." + x.Sel.Name}, nil
		}
		return Type{Kind: KindOther, Name: "selector"}, nil

	case *ast.StarExpr:
		return Type{Kind: KindOther, Name: "pointer"}, nil
	case *ast.MapType:
		return Type{Kind: KindOther, Name: "map"}, nil
	case *ast.ChanType:
		return Type{Kind: KindOther, Name: "chan"}, nil
	case *ast.FuncType:
		return Type{Kind: KindOther, Name: "func"}, nil
	case *ast.InterfaceType:
		return Type{Kind: KindOther, Name: "interface"}, nil
	case *ast.StructType:
		return Type{Kind: KindOther, Name: "anonymous struct"}, nil
	}
	return Type{}, &ParseError{Expr: exprString(e), Message: "not a type expression"}
}

// IsHostLayout reports whether e names structs.HostLayout.
func IsHostLayout(e ast.Expr) bool {
	sel, ok := e.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "structs" && sel.Sel.Name == "HostLayout"
}

func arrayLen(e ast.Expr) (int, error) {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return 0, &ParseError{Expr: exprString(e), Message: "array length must be an integer literal"}
	}
	n, err := strconv.ParseInt(lit.Value, 0, 64)
	if err != nil || n < 0 {
		return 0, &ParseError{Expr: lit.Value, Message: "invalid array length"}
	}
	return int(n), nil
}

func exprString(e ast.Expr) string {
	if e == nil {
		return "<nil>"
	}
	return types.ExprString(e)
}
