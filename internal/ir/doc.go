// Package ir holds the data model shared by every stage of question
// answering: entity kinds, resolution sources, comparison operators,
// candidate spans, resolved entities and the sealed literal Value types
// that filter predicates carry.
//
// Values are deliberately narrow. A literal is a String, an Int or an
// exact decimal Number; nothing else can reach the query compiler.
package ir
