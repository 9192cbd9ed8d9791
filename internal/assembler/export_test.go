package assembler

// RenderVariant exposes renderVariant to the external test package.
var RenderVariant = (*Assembler).renderVariant
