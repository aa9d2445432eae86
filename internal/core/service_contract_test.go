package core

import (
	"fmt"
	"go/ast"
	"go/types"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestServiceStructContract(t *testing.T) {
	pkg := loadCorePackage(t)

	obj := pkg.Types.Scope().Lookup("Service")
	if obj == nil {
		t.Fatalf("Service type not found in package")
	}
	named, ok := obj.Type().(*types.Named)
	if !ok {
		t.Fatalf("Service is not a named type")
	}
	structType, ok := named.Underlying().(*types.Struct)
	if !ok {
		t.Fatalf("Service is not a struct")
	}

	qualifier := func(p *types.Package) string {
		if p == nil {
			return ""
		}
		return p.Path()
	}

	fields := make(map[string]string, structType.NumFields())
	for i := 0; i < structType.NumFields(); i++ {
		field := structType.Field(i)
		fields[field.Name()] = types.TypeString(field.Type(), qualifier)
	}

	required := map[string]string{
		"store":             "meetcore/pkg/domain.PersistentStore",
		"engine":            "*meetcore/pkg/domain.RulesEngine",
		"clock":             "meetcore/internal/core.Clock",
		"now":               "func() time.Time",
		"logger":            "meetcore/internal/core.Logger",
		"audit":             "meetcore/internal/core.AuditRecorder",
		"metrics":           "meetcore/internal/core.MetricsRecorder",
		"tracer":            "meetcore/internal/core.Tracer",
		"archive":           "meetcore/internal/core.SnapshotArchive",
		"houses":            "[]string",
		"strictAllocations": "bool",
	}

	var missing []string
	var mismatched []string
	for name, want := range required {
		got, ok := fields[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if got != want {
			mismatched = append(mismatched, fmt.Sprintf("%s: want %s, got %s", name, want, got))
		}
	}

	if len(missing) > 0 || len(mismatched) > 0 {
		_, file, line, _ := runtime.Caller(0)
		var details []string
		if len(missing) > 0 {
			details = append(details, "missing fields: "+strings.Join(missing, ", "))
		}
		if len(mismatched) > 0 {
			details = append(details, "type mismatches: "+strings.Join(mismatched, "; "))
		}
		t.Fatalf("service struct contract violated (%s:%d): %s", filepath.Base(file), line, strings.Join(details, "; "))
	}
}

func TestServiceTransactionalMethodsUseRun(t *testing.T) {
	pkg := loadCorePackage(t)

	serviceFile := findFile(t, pkg, "service.go")

	var violations []string

	for _, decl := range serviceFile.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || fn.Body == nil {
			continue
		}
		recvName, isService := serviceReceiverName(fn)
		if !isService {
			continue
		}
		if !ast.IsExported(fn.Name.Name) {
			continue
		}
		if !methodReturnsResult(fn) {
			continue
		}
		if methodUsesRun(fn, recvName) {
			continue
		}
		pos := pkg.Fset.Position(fn.Pos())
		violations = append(violations, fmt.Sprintf("%s:%d %s", filepath.Base(pos.Filename), pos.Line, fn.Name.Name))
	}

	if len(violations) > 0 {
		t.Fatalf("service methods returning Result must delegate to run:\n%s", strings.Join(violations, "\n"))
	}
}

var (
	corePkgOnce sync.Once
	corePkg     *packages.Package
	corePkgErr  error
)

func loadCorePackage(t *testing.T) *packages.Package {
	t.Helper()

	corePkgOnce.Do(func() {
		cfg := &packages.Config{
			Mode:  packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedCompiledGoFiles | packages.NeedFiles,
			Tests: true,
		}
		pkgs, err := packages.Load(cfg, "meetcore/internal/core")
		if err != nil {
			corePkgErr = fmt.Errorf("load core package: %w", err)
			return
		}
		if len(pkgs) == 0 {
			corePkgErr = fmt.Errorf("no packages returned when loading core")
			return
		}
		for _, pkg := range pkgs {
			if len(pkg.Errors) > 0 {
				corePkgErr = fmt.Errorf("package load errors: %v", pkg.Errors)
				return
			}
			if pkg.PkgPath == "meetcore/internal/core" {
				corePkg = pkg
				return
			}
		}
		corePkgErr = fmt.Errorf("core package not found in load results")
	})

	if corePkgErr != nil {
		t.Fatalf("core package load: %v", corePkgErr)
	}
	return corePkg
}

func findFile(t *testing.T, pkg *packages.Package, target string) *ast.File {
	t.Helper()
	for _, file := range pkg.Syntax {
		pos := pkg.Fset.Position(file.Pos())
		if filepath.Base(pos.Filename) == target {
			return file
		}
	}
	t.Fatalf("failed to locate %s in package", target)
	return nil
}

func serviceReceiverName(fn *ast.FuncDecl) (string, bool) {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return "", false
	}
	recv := fn.Recv.List[0]
	var ident *ast.Ident
	switch expr := recv.Type.(type) {
	case *ast.StarExpr:
		switch inner := expr.X.(type) {
		case *ast.Ident:
			ident = inner
		case *ast.SelectorExpr:
			ident = inner.Sel
		}
	case *ast.Ident:
		ident = expr
	case *ast.SelectorExpr:
		ident = expr.Sel
	}
	if ident == nil || ident.Name != "Service" {
		return "", false
	}
	if len(recv.Names) == 0 {
		return "", false
	}
	return recv.Names[0].Name, true
}

func methodReturnsResult(fn *ast.FuncDecl) bool {
	if fn.Type.Results == nil {
		return false
	}
	for _, res := range fn.Type.Results.List {
		switch expr := res.Type.(type) {
		case *ast.Ident:
			if expr.Name == "Result" {
				return true
			}
		case *ast.SelectorExpr:
			if expr.Sel.Name == "Result" {
				return true
			}
		}
	}
	return false
}

func methodUsesRun(fn *ast.FuncDecl, receiver string) bool {
	found := false
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		ident, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		if ident.Name == receiver && sel.Sel.Name == "run" {
			found = true
			return false
		}
		return true
	})
	return found
}
