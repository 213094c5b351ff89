// Package extractor turns raw fastbot log text into events.
//
// Extraction happens in two steps per poll cycle:
//
//  1. Gate: lines are dropped until one contains a trigger keyword
//     ("Internal error", "Monkey is over!", "Activity of Coverage"). From that
//     line on, every line of the cycle is appended to the capture buffer.
//  2. Classify: at the end of the cycle the buffer is joined into a single
//     blob and matched against three independent patterns (exception,
//     statistics, coverage). All three run on every flush.
//
// Capturing does not carry across cycles. A trigger line whose body only
// arrives in a later cycle is classified without that body.
package extractor
