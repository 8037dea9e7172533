package instrument

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/t14raptor/go-fast/ast"
)

func TestZZProbe3(t *testing.T) {
	input := "var double = (n) => {\n  return n * 2;\n};\n"
	program, _ := parseAndTransform(t, input, DefaultOptions())
	count := 0
	walkNode(program, func(n any) bool {
		if a, ok := n.(*ast.ArrowFunctionLiteral); ok {
			count++
			cb := a.Body
			fmt.Printf("arrow %d: body type %T\n", count, cb)
			v := reflect.ValueOf(cb).Elem()
			tp := v.Type()
			for i := 0; i < tp.NumField(); i++ {
				fmt.Printf("   field %s %s = %v\n", tp.Field(i).Name, tp.Field(i).Type, v.Field(i).Interface())
			}
		}
		return true
	})
	fmt.Println("total arrows:", count)
	fmt.Printf("top-level stmts: ")
	for _, s := range program.Body {
		fmt.Printf("%T ", s.Stmt)
	}
	fmt.Println()
}
