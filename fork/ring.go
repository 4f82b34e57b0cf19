package fork

//
//      p1  -2-  p2
//    -1-          -3-
//  p0                p3
//      -0-      -4-
//           p4
//
// Philosopher pN needs fork -N- (left) and fork -N+1- (right).

// Left returns the left fork of philosopher i.
func Left(i int) int { return i }

// Right returns the right fork of philosopher i in a ring of n forks.
func Right(i, n int) int { return (i + 1) % n }
