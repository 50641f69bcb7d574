/*

Process of compilation

Program Text ->
	parse ->
Abstract Syntax Tree (ast) ->
	analyze ->
Intermediate Representation (ir) ->
	combo (constant propagation, GVN, dead code) ->
Intermediate Representation (ir) ->
	compile (back.Emit) ->
Binary Object (obj) ->
	link ->
Binary Executable

Assembly Text ->
	parseasm ->
Assembly Language (asm) ->
	assemble ->
Binary Object (obj) ->
	link ->
Binary Executable

*/
package compiler
