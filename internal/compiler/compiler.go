package compiler

import (
	"os"
	"path/filepath"
	"strings"
)

// Default executable names, searched on PATH when no home is configured
const (
	DefaultKotlinc = "kotlinc"
	DefaultKotlin  = "kotlin"
	DefaultJava    = "java"
)

// Toolchain locates the Kotlin and Java executables
type Toolchain struct {
	// KotlinHome is the Kotlin installation, binaries live in its bin directory
	KotlinHome string

	// JavaHome is the JDK installation, empty to use java from PATH
	JavaHome string
}

// NewToolchain creates a toolchain, falling back to $KOTLIN_HOME and
// $JAVA_HOME when a home isn't given
func NewToolchain(kotlinHome, javaHome string) Toolchain {
	if kotlinHome == "" {
		kotlinHome = os.Getenv("KOTLIN_HOME")
	}

	if javaHome == "" {
		javaHome = os.Getenv("JAVA_HOME")
	}

	return Toolchain{KotlinHome: kotlinHome, JavaHome: javaHome}
}

// Kotlinc returns the compiler executable, also used to key the build cache
func (t Toolchain) Kotlinc() string {
	return bin(t.KotlinHome, DefaultKotlinc)
}

// Kotlin returns the Kotlin runner
func (t Toolchain) Kotlin() string {
	return bin(t.KotlinHome, DefaultKotlin)
}

// Java returns the JVM launcher
func (t Toolchain) Java() string {
	return bin(t.JavaHome, DefaultJava)
}

func bin(home, name string) string {
	if home == "" {
		return name
	}

	return filepath.Join(home, "bin", name)
}

// MainClass returns the JVM class generated for a top level Kotlin file,
// "Main.kt" in package "app" becomes "app.MainKt"
func MainClass(file, pkg string) string {
	name := strings.TrimSuffix(filepath.Base(file), ".kt")
	if name == "" {
		return ""
	}

	class := strings.ToUpper(name[:1]) + name[1:] + "Kt"
	if pkg == "" {
		return class
	}

	return pkg + "." + class
}
